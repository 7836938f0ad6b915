package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sagalabs/saga/internal/ai"
	"github.com/sagalabs/saga/internal/chat"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Conversation is a stored conversation's metadata.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateConversation inserts a new conversation row.
func (s *Store) CreateConversation(ctx context.Context, title, model string) (*Conversation, error) {
	id := uuid.New().String()
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, model, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, title, model, now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &Conversation{ID: id, Title: title, Model: model, CreatedAt: now, UpdatedAt: now}, nil
}

// GetConversation loads one conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, model, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.Model, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(created, 0)
	c.UpdatedAt = time.Unix(updated, 0)
	return &c, nil
}

// ListConversations returns all conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, model, created_at, updated_at FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.Title, &c.Model, &created, &updated); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0)
		c.UpdatedAt = time.Unix(updated, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation and its turns.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetConversationModel records a model switch.
func (s *Store) SetConversationModel(ctx context.Context, id, model string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET model = ?, updated_at = unixepoch() WHERE id = ?`, model, id)
	return err
}

// AppendTurn persists one committed turn. Empty text is skipped silently so
// failed sends never leave ghost rows.
func (s *Store) AppendTurn(ctx context.Context, conversationID string, turn chat.Turn) error {
	if turn.Text == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, conversation_id, role, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), conversationID, string(turn.Role), turn.Text, turn.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = unixepoch() WHERE id = ?`, conversationID)
	return err
}

// LoadTurns returns a conversation's committed turns in insertion order.
func (s *Store) LoadTurns(ctx context.Context, conversationID string) ([]chat.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, text, created_at FROM turns WHERE conversation_id = ? ORDER BY rowid`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chat.Turn
	for rows.Next() {
		var role, text string
		var created int64
		if err := rows.Scan(&role, &text, &created); err != nil {
			return nil, err
		}
		out = append(out, chat.Turn{Role: ai.Role(role), Text: text, Timestamp: time.Unix(created, 0)})
	}
	return out, rows.Err()
}

// ClearTurns removes all turns of a conversation (reset).
func (s *Store) ClearTurns(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = unixepoch() WHERE id = ?`, conversationID)
	return err
}

// PurgeOlderThan deletes conversations not updated since cutoff. Returns
// the number of conversations removed.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM turns WHERE conversation_id IN (SELECT id FROM conversations WHERE updated_at < ?)`,
		cutoff.Unix()); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
