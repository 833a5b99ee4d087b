package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/richinex/bucketeer/llm"
)

// backends returns every ConversationStorage implementation under test.
func backends(t *testing.T) map[string]ConversationStorage {
	t.Helper()

	sqlite, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("failed to create in-memory SQLite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]ConversationStorage{
		"memory": NewInMemoryStorage(),
		"sqlite": sqlite,
	}
}

func sampleHistory() []llm.ChatMessage {
	return []llm.ChatMessage{
		llm.SystemMessage("You are a storage assistant."),
		llm.UserMessage("list my buckets"),
		llm.AssistantMessage("You have two buckets: data and logs."),
	}
}

func TestSaveAndLoad(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			history := sampleHistory()

			if err := store.Save(ctx, "session-1", history); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			loaded, err := store.Load(ctx, "session-1")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if len(loaded) != len(history) {
				t.Fatalf("expected %d messages, got %d", len(history), len(loaded))
			}
			for i := range history {
				if loaded[i] != history[i] {
					t.Errorf("message %d: got %+v, want %+v", i, loaded[i], history[i])
				}
			}
		})
	}
}

func TestLoadMissingSessionIsEmpty(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			loaded, err := store.Load(context.Background(), "nope")
			if err != nil {
				t.Fatalf("missing session must not be an error: %v", err)
			}
			if loaded == nil {
				t.Fatal("expected empty slice, got nil")
			}
			if len(loaded) != 0 {
				t.Fatalf("expected no messages, got %d", len(loaded))
			}
		})
	}
}

func TestSaveReplacesHistory(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := store.Save(ctx, "s", sampleHistory()); err != nil {
				t.Fatal(err)
			}
			shorter := []llm.ChatMessage{llm.UserMessage("just this")}
			if err := store.Save(ctx, "s", shorter); err != nil {
				t.Fatal(err)
			}

			loaded, err := store.Load(ctx, "s")
			if err != nil {
				t.Fatal(err)
			}
			if len(loaded) != 1 || loaded[0].Content != "just this" {
				t.Errorf("save did not replace history: %+v", loaded)
			}
		})
	}
}

func TestDeleteSession(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := store.Save(ctx, "gone", sampleHistory()); err != nil {
				t.Fatal(err)
			}
			if err := store.Delete(ctx, "gone"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}

			exists, err := store.Exists(ctx, "gone")
			if err != nil {
				t.Fatal(err)
			}
			if exists {
				t.Error("session should not exist after delete")
			}

			loaded, err := store.Load(ctx, "gone")
			if err != nil {
				t.Fatal(err)
			}
			if len(loaded) != 0 {
				t.Errorf("expected no messages after delete, got %d", len(loaded))
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, id := range []string{"a", "b", "c"} {
				if err := store.Save(ctx, id, sampleHistory()); err != nil {
					t.Fatal(err)
				}
			}

			sessions, err := store.ListSessions(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(sessions) != 3 {
				t.Errorf("expected 3 sessions, got %v", sessions)
			}
		})
	}
}

func TestLoadedHistoryIsACopy(t *testing.T) {
	store := NewInMemoryStorage()
	ctx := context.Background()

	if err := store.Save(ctx, "s", sampleHistory()); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	loaded[0].Content = "mutated"

	reloaded, err := store.Load(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded[0].Content == "mutated" {
		t.Error("mutating a loaded history must not affect stored state")
	}
}

func TestSqlitePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.db")
	ctx := context.Background()

	store, err := OpenSqlite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "persisted", sampleHistory()); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := OpenSqlite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "persisted")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 3 {
		t.Errorf("expected 3 messages after reopen, got %d", len(loaded))
	}
}
