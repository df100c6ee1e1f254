package store

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/antoniostano/novachat/internal/chat"
)

// The file stores keep each record set as one JSON file holding a mapping
// keyed by id. Reads treat a missing or unreadable file as an empty mapping;
// writes rewrite the whole file. A per-store mutex serializes the
// read-modify-write cycle so concurrent requests cannot clobber each other's
// updates within this process.

func readFileMap[V any](path string) map[string]V {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]V{}
	}
	var m map[string]V
	if err := json.Unmarshal(data, &m); err != nil {
		log.Printf("store: %s unreadable, treating as empty: %v", filepath.Base(path), err)
		return map[string]V{}
	}
	if m == nil {
		return map[string]V{}
	}
	return m
}

func writeFileMap[V any](path string, m map[string]V) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// FileSessionStore keeps session histories in a single JSON file.
type FileSessionStore struct {
	mu   sync.Mutex
	path string
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

func (s *FileSessionStore) History(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readFileMap[[]chat.Turn](s.path)[sessionID], nil
}

func (s *FileSessionStore) SetHistory(_ context.Context, sessionID string, turns []chat.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := readFileMap[[]chat.Turn](s.path)
	if turns == nil {
		turns = []chat.Turn{}
	}
	m[sessionID] = turns
	return writeFileMap(s.path, m)
}

// FileUserStore keeps accounts in a single JSON file.
type FileUserStore struct {
	mu   sync.Mutex
	path string
}

func NewFileUserStore(path string) *FileUserStore {
	return &FileUserStore{path: path}
}

func (s *FileUserStore) Get(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := readFileMap[User](s.path)[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *FileUserStore) FindByUsername(_ context.Context, username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range readFileMap[User](s.path) {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *FileUserStore) Put(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := readFileMap[User](s.path)
	m[u.ID] = u
	return writeFileMap(s.path, m)
}

func (s *FileUserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := readFileMap[User](s.path)
	delete(m, id)
	return writeFileMap(s.path, m)
}

// FilePrefStore keeps session preferences in a single JSON file.
type FilePrefStore struct {
	mu   sync.Mutex
	path string
}

func NewFilePrefStore(path string) *FilePrefStore {
	return &FilePrefStore{path: path}
}

func (s *FilePrefStore) Get(_ context.Context, sessionID string) (Prefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readFileMap[Prefs](s.path)[sessionID], nil
}

func (s *FilePrefStore) Put(_ context.Context, sessionID string, p Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := readFileMap[Prefs](s.path)
	m[sessionID] = p
	return writeFileMap(s.path, m)
}
