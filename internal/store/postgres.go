package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antoniostano/novachat/internal/chat"
)

// PostgresBackend persists sessions, users and preferences in PostgreSQL.
// Turn histories, memories and request windows are stored as JSONB so the
// row shape matches the file stores' record shape.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(ctx context.Context, databaseURL string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresBackend{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id TEXT PRIMARY KEY,
			turns JSONB NOT NULL DEFAULT '[]'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS chat_users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			memory JSONB NOT NULL DEFAULT '[]'::jsonb
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_users_username ON chat_users (lower(username));`,
		`CREATE TABLE IF NOT EXISTS chat_session_prefs (
			session_id TEXT PRIMARY KEY,
			model TEXT NOT NULL DEFAULT '',
			requests JSONB NOT NULL DEFAULT '[]'::jsonb
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (b *PostgresBackend) Close() {
	b.pool.Close()
}

func (b *PostgresBackend) History(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	var raw []byte
	err := b.pool.QueryRow(ctx,
		`SELECT turns FROM chat_sessions WHERE id=$1`, sessionID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var turns []chat.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decode session turns: %w", err)
	}
	return turns, nil
}

func (b *PostgresBackend) SetHistory(ctx context.Context, sessionID string, turns []chat.Turn) error {
	if turns == nil {
		turns = []chat.Turn{}
	}
	raw, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode session turns: %w", err)
	}

	_, err = b.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, turns, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET turns = EXCLUDED.turns, updated_at = now()`,
		sessionID, raw,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, id string) (User, error) {
	return b.scanUser(b.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at, memory
		 FROM chat_users WHERE id=$1`, id,
	))
}

func (b *PostgresBackend) FindByUsername(ctx context.Context, username string) (User, error) {
	return b.scanUser(b.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at, memory
		 FROM chat_users WHERE lower(username)=lower($1)`, username,
	))
}

func (b *PostgresBackend) scanUser(row pgx.Row) (User, error) {
	var u User
	var memory []byte
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &memory)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	if err := json.Unmarshal(memory, &u.Memory); err != nil {
		return User{}, fmt.Errorf("decode user memory: %w", err)
	}
	return u, nil
}

func (b *PostgresBackend) Put(ctx context.Context, u User) error {
	if u.Memory == nil {
		u.Memory = []string{}
	}
	memory, err := json.Marshal(u.Memory)
	if err != nil {
		return fmt.Errorf("encode user memory: %w", err)
	}

	_, err = b.pool.Exec(ctx,
		`INSERT INTO chat_users (id, username, password_hash, created_at, memory)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			memory = EXCLUDED.memory`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt, memory,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, id string) error {
	if _, err := b.pool.Exec(ctx, `DELETE FROM chat_users WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (b *PostgresBackend) GetPrefs(ctx context.Context, sessionID string) (Prefs, error) {
	var p Prefs
	var requests []byte
	err := b.pool.QueryRow(ctx,
		`SELECT model, requests FROM chat_session_prefs WHERE session_id=$1`, sessionID,
	).Scan(&p.Model, &requests)
	if errors.Is(err, pgx.ErrNoRows) {
		return Prefs{}, nil
	}
	if err != nil {
		return Prefs{}, fmt.Errorf("load prefs: %w", err)
	}
	if err := json.Unmarshal(requests, &p.Requests); err != nil {
		return Prefs{}, fmt.Errorf("decode prefs requests: %w", err)
	}
	return p, nil
}

func (b *PostgresBackend) PutPrefs(ctx context.Context, sessionID string, p Prefs) error {
	if p.Requests == nil {
		p.Requests = []int64{}
	}
	requests, err := json.Marshal(p.Requests)
	if err != nil {
		return fmt.Errorf("encode prefs requests: %w", err)
	}

	_, err = b.pool.Exec(ctx,
		`INSERT INTO chat_session_prefs (session_id, model, requests) VALUES ($1, $2, $3)
		 ON CONFLICT (session_id) DO UPDATE SET model = EXCLUDED.model, requests = EXCLUDED.requests`,
		sessionID, p.Model, requests,
	)
	if err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	return nil
}

// prefAdapter exposes the backend's pref methods under the PrefStore
// interface, whose Get/Put names collide with UserStore's.
type prefAdapter struct {
	backend *PostgresBackend
}

func (a prefAdapter) Get(ctx context.Context, sessionID string) (Prefs, error) {
	return a.backend.GetPrefs(ctx, sessionID)
}

func (a prefAdapter) Put(ctx context.Context, sessionID string, p Prefs) error {
	return a.backend.PutPrefs(ctx, sessionID, p)
}
