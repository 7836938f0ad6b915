package server

import (
	"context"
	"sync"

	"github.com/sagalabs/saga/internal/ai"
	"github.com/sagalabs/saga/internal/chat"
	"github.com/sagalabs/saga/internal/store"
)

// HubConfig carries the per-conversation controller settings.
type HubConfig struct {
	DefaultModel      string
	SystemInstruction string
	HistoryLimit      int
	MaxAttempts       int
}

// Hub owns one chat.Conversation per stored conversation. Conversations
// are built lazily from the store and kept resident until deleted, so
// retry state and the upstream session survive across requests.
type Hub struct {
	mu     sync.Mutex
	store  *store.Store
	client ai.Client
	cfg    HubConfig
	convs  map[string]*chat.Conversation
}

// NewHub returns a hub serving conversations from st through client.
func NewHub(st *store.Store, client ai.Client, cfg HubConfig) *Hub {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Hub{
		store:  st,
		client: client,
		cfg:    cfg,
		convs:  make(map[string]*chat.Conversation),
	}
}

// Store exposes the backing store for metadata handlers.
func (h *Hub) Store() *store.Store {
	return h.store
}

// Conversation returns the live controller for a stored conversation,
// building it on first use seeded with the persisted transcript.
func (h *Hub) Conversation(ctx context.Context, id string) (*chat.Conversation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conv, ok := h.convs[id]; ok {
		return conv, nil
	}

	meta, err := h.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	model := meta.Model
	if model == "" {
		model = h.cfg.DefaultModel
	}

	factory := chat.NewFactory(h.client, model, h.cfg.SystemInstruction)
	conv := chat.NewConversation(factory, chat.Options{
		HistoryLimit: h.cfg.HistoryLimit,
		MaxAttempts:  h.cfg.MaxAttempts,
	})

	turns, err := h.store.LoadTurns(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(turns) > 0 {
		conv.Restore(turns)
	}

	h.convs[id] = conv
	return conv, nil
}

// Send relays one prompt through a conversation's controller and persists
// the resulting transcript. onChunk and onNotice may be nil.
func (h *Hub) Send(ctx context.Context, id, prompt string, onChunk func(string), onNotice func(chat.Notice)) (string, error) {
	conv, err := h.Conversation(ctx, id)
	if err != nil {
		return "", err
	}
	// Per-call hooks: concurrent sends on one conversation each observe
	// only their own chunks and notices.
	reply, sendErr := conv.SendWith(ctx, prompt, onChunk, onNotice)

	// Re-sync even on failure: quota truncation and resets rewrite the
	// in-memory transcript and the store must follow.
	if err := h.persist(ctx, id, conv); err != nil {
		return reply, err
	}
	return reply, sendErr
}

// Reset wipes a conversation's transcript in memory and in the store.
func (h *Hub) Reset(ctx context.Context, id string) error {
	conv, err := h.Conversation(ctx, id)
	if err != nil {
		return err
	}
	resetErr := conv.Reset(ctx)
	if err := h.store.ClearTurns(ctx, id); err != nil {
		return err
	}
	return resetErr
}

// SetModel rebinds a conversation to a new model and records the switch.
func (h *Hub) SetModel(ctx context.Context, id, model string) error {
	if err := ai.ValidateModel(h.client.Name(), model); err != nil {
		return err
	}
	conv, err := h.Conversation(ctx, id)
	if err != nil {
		return err
	}
	conv.SetModel(model)
	return h.store.SetConversationModel(ctx, id, model)
}

// Forget drops a conversation's live controller, e.g. after deletion.
func (h *Hub) Forget(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.convs, id)
}

// persist replaces the stored turns with the controller's current
// transcript. Full rewrite keeps the store exact under truncation.
func (h *Hub) persist(ctx context.Context, id string, conv *chat.Conversation) error {
	if err := h.store.ClearTurns(ctx, id); err != nil {
		return err
	}
	for _, turn := range conv.Snapshot() {
		if err := h.store.AppendTurn(ctx, id, turn); err != nil {
			return err
		}
	}
	return nil
}
