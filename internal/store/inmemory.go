package store

import (
	"context"
	"strings"
	"sync"

	"github.com/antoniostano/novachat/internal/chat"
)

// InMemorySessionStore is a simple in-process session store for local/dev use
// and tests.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]chat.Turn
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string][]chat.Turn)}
}

func (s *InMemorySessionStore) History(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.sessions[sessionID]
	out := make([]chat.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *InMemorySessionStore) SetHistory(_ context.Context, sessionID string, turns []chat.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]chat.Turn, len(turns))
	copy(stored, turns)
	s.sessions[sessionID] = stored
	return nil
}

// InMemoryUserStore is a simple in-process account store for tests.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]User)}
}

func (s *InMemoryUserStore) Get(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *InMemoryUserStore) FindByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return cloneUser(u), nil
		}
	}
	return User{}, ErrNotFound
}

func (s *InMemoryUserStore) Put(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *InMemoryUserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func cloneUser(u User) User {
	c := u
	c.Memory = make([]string, len(u.Memory))
	copy(c.Memory, u.Memory)
	return c
}

// InMemoryPrefStore is a simple in-process preference store for tests.
type InMemoryPrefStore struct {
	mu    sync.RWMutex
	prefs map[string]Prefs
}

func NewInMemoryPrefStore() *InMemoryPrefStore {
	return &InMemoryPrefStore{prefs: make(map[string]Prefs)}
}

func (s *InMemoryPrefStore) Get(_ context.Context, sessionID string) (Prefs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePrefs(s.prefs[sessionID]), nil
}

func (s *InMemoryPrefStore) Put(_ context.Context, sessionID string, p Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[sessionID] = clonePrefs(p)
	return nil
}

func clonePrefs(p Prefs) Prefs {
	c := p
	c.Requests = make([]int64, len(p.Requests))
	copy(c.Requests, p.Requests)
	return c
}
