package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/sagalabs/saga/internal/ai"
)

// Factory builds fresh upstream sessions bound to the current (model,
// system instruction) pair. The upstream client handle is shared read-only
// across rebuilds; only the model binding changes at runtime.
type Factory struct {
	mu     sync.Mutex
	client ai.Client
	model  string
	system string
}

// NewFactory returns a factory bound to client, model, and system
// instruction. client may be nil; Create then fails until SetClient.
func NewFactory(client ai.Client, model, systemInstruction string) *Factory {
	return &Factory{client: client, model: model, system: systemInstruction}
}

// Model returns the currently bound model identifier.
func (f *Factory) Model() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

// SetModel rebinds the factory to a new model. Existing sessions are
// unaffected; the owner invalidates its session reference separately.
func (f *Factory) SetModel(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = name
}

// SetClient swaps the upstream client, e.g. after credentials change.
func (f *Factory) SetClient(client ai.Client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.client = client
}

// Ready reports whether a client is bound.
func (f *Factory) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.client != nil
}

// Create builds a brand-new session pre-loaded with seed as prior turns.
// No message is sent. Failure is fatal for the caller's current operation
// and consumes no retry budget.
func (f *Factory) Create(ctx context.Context, seed []Turn) (ai.Session, error) {
	f.mu.Lock()
	client, model, system := f.client, f.model, f.system
	f.mu.Unlock()

	if client == nil {
		return nil, &ai.Error{Kind: ai.KindSessionInit, Message: "no upstream client configured"}
	}

	history := make([]ai.Message, 0, len(seed))
	for _, t := range seed {
		history = append(history, ai.Message{Role: t.Role, Text: t.Text})
	}

	sess, err := client.NewSession(ctx, ai.SessionOptions{
		Model:             model,
		SystemInstruction: system,
		History:           history,
	})
	if err != nil {
		var ae *ai.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, &ai.Error{Kind: ai.KindSessionInit, Provider: client.Name(), Message: "session create failed", Err: err}
	}
	return sess, nil
}
