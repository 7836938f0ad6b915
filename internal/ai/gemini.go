package ai

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Gemini is the client for the Google Generative Language API, the primary
// upstream. Its ChatSession carries seeded history natively.
type Gemini struct {
	client *genai.Client
}

// NewGemini authenticates with an API key.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, &Error{Kind: KindAuth, Provider: ProviderGemini, Message: "missing API key"}
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, &Error{Kind: KindAuth, Provider: ProviderGemini, Message: "authentication failed", Err: err}
	}
	return &Gemini{client: client}, nil
}

// Name returns the provider identifier.
func (g *Gemini) Name() string { return ProviderGemini }

// Close releases the underlying connection.
func (g *Gemini) Close() error { return g.client.Close() }

// NewSession binds a chat session to (model, system instruction, history).
// No message is sent; a bad model fails here, not at first send.
func (g *Gemini) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ValidateModel(ProviderGemini, opts.Model); err != nil {
		return nil, err
	}
	model := g.client.GenerativeModel(opts.Model)
	if opts.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(opts.SystemInstruction)},
		}
	}
	chat := model.StartChat()
	chat.History = make([]*genai.Content, 0, len(opts.History))
	for _, m := range opts.History {
		chat.History = append(chat.History, &genai.Content{
			Role:  string(m.Role),
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}
	return &geminiSession{chat: chat}, nil
}

type geminiSession struct {
	chat *genai.ChatSession
}

func (s *geminiSession) SendMessage(ctx context.Context, text string) <-chan StreamEvent {
	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)
		iter := s.chat.SendMessageStream(ctx, genai.Text(text))
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				emit(ctx, events, StreamEvent{Type: EventTypeDone})
				return
			}
			if err != nil {
				emit(ctx, events, StreamEvent{Type: EventTypeError, Err: classifyGemini(err)})
				return
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if t, ok := part.(genai.Text); ok && t != "" {
						if !emit(ctx, events, StreamEvent{Type: EventTypeText, Text: string(t)}) {
							return
						}
					}
				}
			}
		}
	}()
	return events
}

// classifyGemini handles the two error shapes the SDK produces: googleapi
// HTTP errors and gRPC status errors. Everything else falls through to the
// generic classifier.
func classifyGemini(err error) *Error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classifyStatus(ProviderGemini, gerr.Code, gerr.Message, err)
	}
	return Classify(ProviderGemini, err)
}
