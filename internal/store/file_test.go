package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/antoniostano/novachat/internal/chat"
)

func TestFileSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewFileSessionStore(filepath.Join(t.TempDir(), "sessions.json"))

	history, err := s.History(ctx, "sid-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("fresh store history = %v, want empty", history)
	}

	turns := []chat.Turn{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "Hello! I'm Novachat — how can I help today?"},
	}
	if err := s.SetHistory(ctx, "sid-1", turns); err != nil {
		t.Fatalf("SetHistory() error = %v", err)
	}

	history, err = s.History(ctx, "sid-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Content != "hi" || history[1].Role != chat.RoleAssistant {
		t.Fatalf("History() = %+v, want the stored turns", history)
	}

	other, err := s.History(ctx, "sid-2")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("other session history = %v, want empty", other)
	}
}

func TestFileSessionStoreCorruptFileReadsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	s := NewFileSessionStore(path)
	history, err := s.History(ctx, "sid")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("corrupt store history = %v, want empty", history)
	}

	// The store stays writable after recovering from the corrupt file.
	if err := s.SetHistory(ctx, "sid", []chat.Turn{{Role: chat.RoleUser, Content: "x"}}); err != nil {
		t.Fatalf("SetHistory() after corrupt read error = %v", err)
	}
}

func TestFileUserStoreLookup(t *testing.T) {
	ctx := context.Background()
	s := NewFileUserStore(filepath.Join(t.TempDir(), "users.json"))

	u := User{
		ID:           "u-1",
		Username:     "Alice",
		PasswordHash: "$2a$10$fake",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		Memory:       []string{"likes tea"},
	}
	if err := s.Put(ctx, u); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByUsername(alice) error = %v", err)
	}
	if got.ID != "u-1" || len(got.Memory) != 1 {
		t.Fatalf("FindByUsername(alice) = %+v, want stored user", got)
	}

	if _, err := s.FindByUsername(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByUsername(bob) error = %v, want ErrNotFound", err)
	}

	if err := s.Delete(ctx, "u-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "u-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestFilePrefStoreMissingReadsZero(t *testing.T) {
	ctx := context.Background()
	s := NewFilePrefStore(filepath.Join(t.TempDir(), "session_prefs.json"))

	p, err := s.Get(ctx, "sid")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Model != "" || len(p.Requests) != 0 {
		t.Fatalf("fresh prefs = %+v, want zero value", p)
	}

	p.Model = "gpt-4"
	p.Requests = []int64{1, 2, 3}
	if err := s.Put(ctx, "sid", p); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(ctx, "sid")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Model != "gpt-4" || len(got.Requests) != 3 {
		t.Fatalf("Get() = %+v, want stored prefs", got)
	}
}
