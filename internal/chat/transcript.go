// Package chat implements the resilient chat-session controller: the
// transcript store, the session factory, and the conversation state machine
// that recovers from upstream rate limiting by truncating context and
// retrying with exponential backoff.
package chat

import (
	"time"

	"github.com/sagalabs/saga/internal/ai"
)

// Turn is one message exchange unit. Immutable once created.
type Turn struct {
	Role      ai.Role   `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is the ordered, append-only history of one conversation. It
// does not enforce user/model alternation: a user turn may exist transiently
// without its model counterpart mid-request. Memory only, no I/O.
//
// A Transcript is owned by a single Conversation, which serializes access;
// it carries no lock of its own.
type Transcript struct {
	turns []Turn
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a turn at the end.
func (t *Transcript) Append(turn Turn) {
	t.turns = append(t.turns, turn)
}

// Snapshot returns a copy of all turns, for seeding a session or exporting.
func (t *Transcript) Snapshot() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Truncate returns a copy of the last limit turns (all of them when the
// transcript is shorter, none when limit is zero or negative). The store is
// not mutated; callers replace its contents explicitly via Replace.
func (t *Transcript) Truncate(limit int) []Turn {
	if limit <= 0 {
		return []Turn{}
	}
	start := 0
	if len(t.turns) > limit {
		start = len(t.turns) - limit
	}
	out := make([]Turn, len(t.turns)-start)
	copy(out, t.turns[start:])
	return out
}

// Replace swaps the transcript contents for the given turns.
func (t *Transcript) Replace(turns []Turn) {
	t.turns = make([]Turn, len(turns))
	copy(t.turns, turns)
}

// Clear empties the transcript.
func (t *Transcript) Clear() {
	t.turns = nil
}

// Len returns the number of committed turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}
