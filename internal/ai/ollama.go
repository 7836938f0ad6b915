package ai

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Ollama is the client for a local Ollama daemon. No credentials; quota
// errors do not occur, but the taxonomy still applies to connection and
// model failures.
type Ollama struct {
	client *api.Client
}

// NewOllama connects to the daemon at baseURL, or to OLLAMA_HOST (default
// localhost) when baseURL is empty.
func NewOllama(baseURL string) (*Ollama, error) {
	if baseURL == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, &Error{Kind: KindSessionInit, Provider: ProviderOllama, Message: "cannot resolve ollama host", Err: err}
		}
		return &Ollama{client: client}, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, &Error{Kind: KindSessionInit, Provider: ProviderOllama, Message: "invalid base URL " + baseURL, Err: err}
	}
	return &Ollama{client: api.NewClient(u, http.DefaultClient)}, nil
}

// Name returns the provider identifier.
func (o *Ollama) Name() string { return ProviderOllama }

// Close is a no-op; the client is plain HTTP.
func (o *Ollama) Close() error { return nil }

// NewSession binds a session to (model, system instruction, history).
func (o *Ollama) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ValidateModel(ProviderOllama, opts.Model); err != nil {
		return nil, err
	}
	history := make([]api.Message, 0, len(opts.History))
	for _, m := range opts.History {
		history = append(history, ollamaMessage(m.Role, m.Text))
	}
	return &ollamaSession{
		client:  o.client,
		model:   opts.Model,
		system:  opts.SystemInstruction,
		history: history,
	}, nil
}

func ollamaMessage(role Role, text string) api.Message {
	r := "user"
	if role == RoleModel {
		r = "assistant"
	}
	return api.Message{Role: r, Content: text}
}

type ollamaSession struct {
	client  *api.Client
	model   string
	system  string
	history []api.Message
}

func (s *ollamaSession) SendMessage(ctx context.Context, text string) <-chan StreamEvent {
	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)

		msgs := make([]api.Message, 0, len(s.history)+2)
		if s.system != "" {
			msgs = append(msgs, api.Message{Role: "system", Content: s.system})
		}
		msgs = append(msgs, s.history...)
		msgs = append(msgs, ollamaMessage(RoleUser, text))

		streaming := true
		var full strings.Builder
		err := s.client.Chat(ctx, &api.ChatRequest{
			Model:    s.model,
			Messages: msgs,
			Stream:   &streaming,
		}, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				full.WriteString(resp.Message.Content)
				if !emit(ctx, events, StreamEvent{Type: EventTypeText, Text: resp.Message.Content}) {
					return ctx.Err()
				}
			}
			return nil
		})
		if err != nil {
			emit(ctx, events, StreamEvent{Type: EventTypeError, Err: Classify(ProviderOllama, err)})
			return
		}

		s.history = append(s.history,
			ollamaMessage(RoleUser, text),
			ollamaMessage(RoleModel, full.String()),
		)
		emit(ctx, events, StreamEvent{Type: EventTypeDone})
	}()
	return events
}
