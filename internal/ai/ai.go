// Package ai abstracts the hosted LLM providers behind a common client and
// session contract. A Client is an authenticated handle to one upstream
// service; a Session is a bound, stateful chat scoped to one model, one
// system instruction, and a seed history. Sessions stream their replies as
// ordered text chunks over a channel.
package ai

import "context"

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message written by the human.
	RoleUser Role = "user"
	// RoleModel marks a message produced by the model.
	RoleModel Role = "model"
)

// Message is one prior exchange unit used to seed a session.
type Message struct {
	Role Role
	Text string
}

// EventType discriminates streaming events.
type EventType string

const (
	// EventTypeText carries one partial-text chunk.
	EventTypeText EventType = "text"
	// EventTypeDone terminates a successful stream.
	EventTypeDone EventType = "done"
	// EventTypeError terminates a failed stream. Err is classified.
	EventTypeError EventType = "error"
)

// StreamEvent is one event on a session's reply stream. Every stream ends
// with exactly one terminal event (done or error), then the channel closes.
type StreamEvent struct {
	Type EventType
	Text string
	Err  error
}

// SessionOptions binds a new session to a model, a system instruction, and
// prior history. The history is pre-loaded so the model has continuity
// without resending old turns as new messages.
type SessionOptions struct {
	Model             string
	SystemInstruction string
	History           []Message
}

// Client is an authenticated connection to an upstream provider. It is
// shared read-only across session rebuilds within one conversation.
type Client interface {
	// Name returns the provider identifier (gemini, anthropic, ...).
	Name() string

	// NewSession constructs a fresh session. No message is sent. Failures
	// are returned as *Error with KindSessionInit or KindAuth.
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)

	// Close releases the underlying connection.
	Close() error
}

// Session is a bound chat handle. SendMessage streams the reply for one
// prompt; the returned channel is closed after the terminal event.
// Cancelling the context aborts the stream between chunks.
type Session interface {
	SendMessage(ctx context.Context, text string) <-chan StreamEvent
}

// emit delivers an event unless the consumer has gone away.
func emit(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
