package store

import (
	"context"
	"errors"
	"time"

	"github.com/antoniostano/novachat/internal/chat"
)

var ErrNotFound = errors.New("record not found")

// User is a registered account. Username uniqueness is case-insensitive and
// the memory list only grows, appended via the chat side-channel.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	Memory       []string  `json:"memory"`
}

// Prefs holds per-session settings: an optional model override and the
// sliding-window request timestamps (unix milliseconds) used for rate
// limiting.
type Prefs struct {
	Model    string  `json:"model,omitempty"`
	Requests []int64 `json:"requests"`
}

// SessionStore persists ordered turn history keyed by session id. A session
// id that has never been written reads as an empty history, not an error.
type SessionStore interface {
	History(ctx context.Context, sessionID string) ([]chat.Turn, error)
	SetHistory(ctx context.Context, sessionID string, turns []chat.Turn) error
}

// UserStore persists accounts keyed by id.
type UserStore interface {
	Get(ctx context.Context, id string) (User, error)
	// FindByUsername matches case-insensitively.
	FindByUsername(ctx context.Context, username string) (User, error)
	Put(ctx context.Context, u User) error
	Delete(ctx context.Context, id string) error
}

// PrefStore persists per-session preferences. A missing record reads as the
// zero Prefs.
type PrefStore interface {
	Get(ctx context.Context, sessionID string) (Prefs, error)
	Put(ctx context.Context, sessionID string, p Prefs) error
}
