package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// Anthropic is the client for the Anthropic Messages API. The API is
// stateless, so the session replays its history on every send and folds
// successful exchanges back in.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic builds a client bound to an API key.
func NewAnthropic(apiKey string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, &Error{Kind: KindAuth, Provider: ProviderAnthropic, Message: "missing API key"}
	}
	return &Anthropic{client: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

// Name returns the provider identifier.
func (a *Anthropic) Name() string { return ProviderAnthropic }

// Close is a no-op; the SDK holds no persistent connection.
func (a *Anthropic) Close() error { return nil }

// NewSession binds a session to (model, system instruction, history).
func (a *Anthropic) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ValidateModel(ProviderAnthropic, opts.Model); err != nil {
		return nil, err
	}
	history := make([]anthropic.MessageParam, 0, len(opts.History))
	for _, m := range opts.History {
		history = append(history, anthropicMessage(m.Role, m.Text))
	}
	return &anthropicSession{
		client:  a.client,
		model:   opts.Model,
		system:  opts.SystemInstruction,
		history: history,
	}, nil
}

func anthropicMessage(role Role, text string) anthropic.MessageParam {
	if role == RoleModel {
		return anthropic.NewAssistantMessage(anthropic.NewTextBlock(text))
	}
	return anthropic.NewUserMessage(anthropic.NewTextBlock(text))
}

type anthropicSession struct {
	client  anthropic.Client
	model   string
	system  string
	history []anthropic.MessageParam
}

func (s *anthropicSession) SendMessage(ctx context.Context, text string) <-chan StreamEvent {
	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)

		msgs := make([]anthropic.MessageParam, 0, len(s.history)+1)
		msgs = append(msgs, s.history...)
		msgs = append(msgs, anthropicMessage(RoleUser, text))

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(s.model),
			MaxTokens: anthropicMaxTokens,
			Messages:  msgs,
		}
		if s.system != "" {
			params.System = []anthropic.TextBlockParam{{Text: s.system}}
		}

		stream := s.client.Messages.NewStreaming(ctx, params)
		var full strings.Builder
		for stream.Next() {
			switch ev := stream.Current().AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					full.WriteString(delta.Text)
					if !emit(ctx, events, StreamEvent{Type: EventTypeText, Text: delta.Text}) {
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			emit(ctx, events, StreamEvent{Type: EventTypeError, Err: classifyAnthropic(err)})
			return
		}

		// Fold the completed exchange into the session's history so the
		// next send carries it. A failed send leaves the history untouched.
		s.history = append(s.history,
			anthropicMessage(RoleUser, text),
			anthropicMessage(RoleModel, full.String()),
		)
		emit(ctx, events, StreamEvent{Type: EventTypeDone})
	}()
	return events
}

func classifyAnthropic(err error) *Error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return classifyStatus(ProviderAnthropic, apierr.StatusCode, apierr.Error(), err)
	}
	return Classify(ProviderAnthropic, err)
}
