package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sagalabs/saga/internal/ai"
)

// State is the controller's position in the send state machine:
// Idle → Sending → {Success, RateLimited, Failed}.
type State string

const (
	StateIdle        State = "idle"
	StateSending     State = "sending"
	StateSuccess     State = "success"
	StateRateLimited State = "rate_limited"
	StateFailed      State = "failed"
)

// Notice is a user-visible notification keyed by error kind. Every error
// path produces one before or as part of the state transition.
type Notice struct {
	Kind    ai.Kind
	Message string
}

// Options configures a Conversation.
type Options struct {
	// HistoryLimit is the number of trailing committed turns kept when
	// recovering from quota exhaustion. Zero means recovery rebuilds with
	// an empty seed (full context loss, accepted cost).
	HistoryLimit int
	// MaxAttempts bounds send attempts per prompt. Minimum 1.
	MaxAttempts int
	// BackoffUnit scales the exponential backoff. Defaults to one second:
	// the wait after attempt k is 2^k units.
	BackoffUnit time.Duration
	// OnChunk observes each streamed partial-text chunk. UI only; it has
	// no effect on control flow.
	OnChunk func(text string)
	// OnNotice observes warnings and errors.
	OnNotice func(n Notice)
}

// Conversation owns one logical conversation: the transcript store, the
// current session reference, and the retry state machine around sends.
// All entry points serialize on an internal mutex; streaming consumption
// and backoff waits are suspension points that honor the caller's context.
type Conversation struct {
	mu         sync.Mutex
	factory    *Factory
	transcript *Transcript
	session    ai.Session
	state      State

	historyLimit int
	maxAttempts  int
	backoffUnit  time.Duration
	onChunk      func(string)
	onNotice     func(Notice)

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// NewConversation builds an idle conversation with an empty transcript.
func NewConversation(factory *Factory, opts Options) *Conversation {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.HistoryLimit < 0 {
		opts.HistoryLimit = 0
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = time.Second
	}
	return &Conversation{
		factory:      factory,
		transcript:   NewTranscript(),
		state:        StateIdle,
		historyLimit: opts.HistoryLimit,
		maxAttempts:  opts.MaxAttempts,
		backoffUnit:  opts.BackoffUnit,
		onChunk:      opts.OnChunk,
		onNotice:     opts.OnNotice,
		now:          time.Now,
		wait:         waitCtx,
	}
}

// State returns the state after the most recent operation.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Model returns the currently bound model identifier.
func (c *Conversation) Model() string {
	return c.factory.Model()
}

// Snapshot returns a copy of the committed transcript.
func (c *Conversation) Snapshot() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Snapshot()
}

// TurnCount returns the number of committed turns.
func (c *Conversation) TurnCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Len()
}

// SetHooks rebinds the chunk and notice observers. Blocks while a send is
// in flight, so hooks never change mid-stream.
func (c *Conversation) SetHooks(onChunk func(string), onNotice func(Notice)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChunk = onChunk
	c.onNotice = onNotice
}

// SetModel switches the upstream model. The session reference is
// invalidated and rebuilt lazily on the next send; the transcript survives
// the switch.
func (c *Conversation) SetModel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factory.SetModel(name)
	c.session = nil
}

// Restore replaces the transcript with previously persisted turns and
// invalidates the session so the next send is seeded with them.
func (c *Conversation) Restore(turns []Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript.Replace(turns)
	c.session = nil
}

// Send relays one prompt and returns the full streamed response.
//
// The user turn stays pending until the attempt succeeds, so a failed
// attempt can replay the same prompt without double-counting. On quota
// exhaustion the committed transcript is truncated to the trailing
// HistoryLimit turns, the session is rebuilt from that seed, and the send
// retries after an exponential backoff of 2^attempt units. A final-attempt
// quota failure, or any non-quota upstream error, resets the conversation
// completely. Exactly one user and one model turn are committed per
// successful call, in that order.
func (c *Conversation) Send(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(ctx, prompt)
}

// SendWith is Send with per-call observers: the conversation-level hooks
// are swapped out for the duration of this call only, under the same
// mutex as the send itself, so concurrent callers never observe each
// other's chunks or notices.
func (c *Conversation) SendWith(ctx context.Context, prompt string, onChunk func(string), onNotice func(Notice)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prevChunk, prevNotice := c.onChunk, c.onNotice
	c.onChunk, c.onNotice = onChunk, onNotice
	defer func() {
		c.onChunk, c.onNotice = prevChunk, prevNotice
	}()
	return c.sendLocked(ctx, prompt)
}

func (c *Conversation) sendLocked(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("empty prompt")
	}

	pending := Turn{Role: ai.RoleUser, Text: prompt, Timestamp: c.now()}

	if c.session == nil {
		sess, err := c.factory.Create(ctx, c.transcript.Snapshot())
		if err != nil {
			c.state = StateFailed
			c.notify(err)
			return "", err
		}
		c.session = sess
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.state = StateSending
		full, err := c.stream(ctx, prompt)
		if err == nil {
			c.transcript.Append(pending)
			c.transcript.Append(Turn{Role: ai.RoleModel, Text: full, Timestamp: c.now()})
			c.state = StateSuccess
			return full, nil
		}
		if ctx.Err() != nil {
			// Aborted by the caller: the pending turn is discarded and the
			// committed transcript stays intact.
			c.state = StateIdle
			return "", ctx.Err()
		}
		if !ai.IsQuota(err) {
			c.state = StateFailed
			c.notify(err)
			c.resetLocked(ctx)
			return "", err
		}

		lastErr = err
		if attempt == c.maxAttempts {
			break
		}

		c.state = StateRateLimited
		delay := c.backoff(attempt)
		c.notice(ai.KindQuota, fmt.Sprintf("rate limited (attempt %d/%d), retrying in %s", attempt, c.maxAttempts, delay))

		// Recover: keep only the trailing HistoryLimit committed turns and
		// rebuild the session from that seed. The pending user turn is not
		// committed yet and so never counts against the limit.
		kept := c.transcript.Truncate(c.historyLimit)
		c.transcript.Replace(kept)
		sess, err := c.factory.Create(ctx, kept)
		if err != nil {
			c.state = StateFailed
			c.notify(err)
			return "", err
		}
		c.session = sess

		if err := c.wait(ctx, delay); err != nil {
			c.state = StateIdle
			return "", err
		}
	}

	// Retry budget exhausted: no partial state survives.
	c.state = StateFailed
	c.notify(lastErr)
	c.resetLocked(ctx)
	return "", lastErr
}

// Reset clears the transcript, drops the session, and eagerly rebuilds an
// empty-seeded session so the next send pays no double initialization. A
// rebuild failure is reported but terminal; it never re-enters retry logic.
func (c *Conversation) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetLocked(ctx)
}

func (c *Conversation) resetLocked(ctx context.Context) error {
	c.transcript.Clear()
	c.session = nil
	c.state = StateIdle
	if !c.factory.Ready() {
		return nil
	}
	sess, err := c.factory.Create(ctx, nil)
	if err != nil {
		c.notify(err)
		return err
	}
	c.session = sess
	return nil
}

// stream consumes one reply stream, concatenating chunks in arrival order.
func (c *Conversation) stream(ctx context.Context, prompt string) (string, error) {
	var full strings.Builder
	for ev := range c.session.SendMessage(ctx, prompt) {
		switch ev.Type {
		case ai.EventTypeText:
			full.WriteString(ev.Text)
			if c.onChunk != nil {
				c.onChunk(ev.Text)
			}
		case ai.EventTypeError:
			return "", ev.Err
		case ai.EventTypeDone:
			return full.String(), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", &ai.Error{Kind: ai.KindUnexpected, Message: "stream ended without completion"}
}

func (c *Conversation) backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * c.backoffUnit
}

func (c *Conversation) notify(err error) {
	if err == nil {
		return
	}
	c.notice(ai.KindOf(err), err.Error())
}

func (c *Conversation) notice(kind ai.Kind, message string) {
	if c.onNotice != nil {
		c.onNotice(Notice{Kind: kind, Message: message})
	}
}

func waitCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
