package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sagalabs/saga/internal/ai"
	"github.com/sagalabs/saga/internal/chat"
	"github.com/sagalabs/saga/internal/store/migrations"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	migrations.QuietMode = true
	s, err := Open(filepath.Join(t.TempDir(), "saga.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConversationLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "Tower talk", "gemini-2.0-flash")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.Title != "Tower talk" || got.Model != "gemini-2.0-flash" {
		t.Errorf("got %+v", got)
	}

	list, err := s.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list len = %d", len(list))
	}

	if err := s.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if _, err := s.GetConversation(ctx, conv.ID); err != ErrNotFound {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteConversation(ctx, conv.ID); err != ErrNotFound {
		t.Errorf("double delete err = %v, want ErrNotFound", err)
	}
}

func TestAppendAndLoadTurns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", "gemini-2.0-flash")
	if err != nil {
		t.Fatal(err)
	}

	at := time.Now()
	turns := []chat.Turn{
		{Role: ai.RoleUser, Text: "Where was the Eiffel Tower built?", Timestamp: at},
		{Role: ai.RoleModel, Text: "Paris, 1889.", Timestamp: at},
	}
	for _, turn := range turns {
		if err := s.AppendTurn(ctx, conv.ID, turn); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}
	// Empty text is skipped, not stored
	if err := s.AppendTurn(ctx, conv.ID, chat.Turn{Role: ai.RoleModel, Timestamp: at}); err != nil {
		t.Fatalf("AppendTurn empty: %v", err)
	}

	loaded, err := s.LoadTurns(ctx, conv.ID)
	if err != nil {
		t.Fatalf("LoadTurns: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d turns, want 2", len(loaded))
	}
	if loaded[0].Role != ai.RoleUser || loaded[1].Role != ai.RoleModel {
		t.Errorf("roles out of order: %s, %s", loaded[0].Role, loaded[1].Role)
	}
	if loaded[1].Text != "Paris, 1889." {
		t.Errorf("text = %q", loaded[1].Text)
	}

	if err := s.ClearTurns(ctx, conv.ID); err != nil {
		t.Fatalf("ClearTurns: %v", err)
	}
	loaded, err = s.LoadTurns(ctx, conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 {
		t.Errorf("after clear: %d turns", len(loaded))
	}
}

func TestSetConversationModel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", "gemini-2.0-flash")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetConversationModel(ctx, conv.ID, "gemini-2.5-pro"); err != nil {
		t.Fatalf("SetConversationModel: %v", err)
	}
	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != "gemini-2.5-pro" {
		t.Errorf("model = %s", got.Model)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old, err := s.CreateConversation(ctx, "old", "")
	if err != nil {
		t.Fatal(err)
	}
	// Backdate the old conversation
	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().AddDate(0, 0, -30).Unix(), old.ID); err != nil {
		t.Fatal(err)
	}
	fresh, err := s.CreateConversation(ctx, "fresh", "")
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.PurgeOlderThan(ctx, time.Now().AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if _, err := s.GetConversation(ctx, old.ID); err != ErrNotFound {
		t.Error("old conversation survived the purge")
	}
	if _, err := s.GetConversation(ctx, fresh.ID); err != nil {
		t.Errorf("fresh conversation was purged: %v", err)
	}
}
