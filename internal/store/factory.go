package store

import (
	"context"
	"path/filepath"
	"strings"
)

// Backend groups the three stores behind one handle.
type Backend struct {
	Sessions SessionStore
	Users    UserStore
	Prefs    PrefStore

	closeFn func()
}

// Open creates a postgres-backed store set when a database URL is configured,
// otherwise JSON files under dataDir.
func Open(ctx context.Context, databaseURL, dataDir string) (*Backend, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return &Backend{
			Sessions: NewFileSessionStore(filepath.Join(dataDir, "sessions.json")),
			Users:    NewFileUserStore(filepath.Join(dataDir, "users.json")),
			Prefs:    NewFilePrefStore(filepath.Join(dataDir, "session_prefs.json")),
		}, nil
	}

	pg, err := NewPostgresBackend(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Sessions: pg,
		Users:    pg,
		Prefs:    prefAdapter{backend: pg},
		closeFn:  pg.Close,
	}, nil
}

func (b *Backend) Close() {
	if b != nil && b.closeFn != nil {
		b.closeFn()
	}
}
