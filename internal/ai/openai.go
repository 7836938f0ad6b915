package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI is the client for the OpenAI chat completions API. Like Anthropic,
// the API is stateless; the session replays history per send.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI builds a client bound to an API key.
func NewOpenAI(apiKey string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, &Error{Kind: KindAuth, Provider: ProviderOpenAI, Message: "missing API key"}
	}
	return &OpenAI{client: openai.NewClient(option.WithAPIKey(apiKey))}, nil
}

// Name returns the provider identifier.
func (o *OpenAI) Name() string { return ProviderOpenAI }

// Close is a no-op; the SDK holds no persistent connection.
func (o *OpenAI) Close() error { return nil }

// NewSession binds a session to (model, system instruction, history).
func (o *OpenAI) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ValidateModel(ProviderOpenAI, opts.Model); err != nil {
		return nil, err
	}
	history := make([]openai.ChatCompletionMessageParamUnion, 0, len(opts.History))
	for _, m := range opts.History {
		history = append(history, openaiMessage(m.Role, m.Text))
	}
	return &openaiSession{
		client:  o.client,
		model:   opts.Model,
		system:  opts.SystemInstruction,
		history: history,
	}, nil
}

func openaiMessage(role Role, text string) openai.ChatCompletionMessageParamUnion {
	if role == RoleModel {
		return openai.AssistantMessage(text)
	}
	return openai.UserMessage(text)
}

type openaiSession struct {
	client  openai.Client
	model   string
	system  string
	history []openai.ChatCompletionMessageParamUnion
}

func (s *openaiSession) SendMessage(ctx context.Context, text string) <-chan StreamEvent {
	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)

		msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(s.history)+2)
		if s.system != "" {
			msgs = append(msgs, openai.SystemMessage(s.system))
		}
		msgs = append(msgs, s.history...)
		msgs = append(msgs, openai.UserMessage(text))

		stream := s.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(s.model),
			Messages: msgs,
		})
		var full strings.Builder
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				full.WriteString(delta)
				if !emit(ctx, events, StreamEvent{Type: EventTypeText, Text: delta}) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			emit(ctx, events, StreamEvent{Type: EventTypeError, Err: classifyOpenAI(err)})
			return
		}

		s.history = append(s.history,
			openai.UserMessage(text),
			openai.AssistantMessage(full.String()),
		)
		emit(ctx, events, StreamEvent{Type: EventTypeDone})
	}()
	return events
}

func classifyOpenAI(err error) *Error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return classifyStatus(ProviderOpenAI, apierr.StatusCode, apierr.Error(), err)
	}
	return Classify(ProviderOpenAI, err)
}
