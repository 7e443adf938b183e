package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/utils"
)

// Store persists the agent's sync bookkeeping.
type Store interface {
	Load(ctx context.Context) (*domain.SyncState, error)
	Save(ctx context.Context, st *domain.SyncState) error
}

// FileStore keeps the state as JSON on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

// Load returns a fresh state when the file does not exist yet.
func (s *FileStore) Load(_ context.Context) (*domain.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.NewSyncState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	st := domain.NewSyncState()
	if len(data) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to decode state file %s: %w", s.path, err)
	}
	if st.LocallyModified == nil {
		st.LocallyModified = map[string]bool{}
	}
	return st, nil
}

func (s *FileStore) Save(_ context.Context, st *domain.SyncState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := utils.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu sync.Mutex
	st *domain.SyncState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: domain.NewSyncState()}
}

func (s *MemoryStore) Load(_ context.Context) (*domain.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, st *domain.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = st.Clone()
	return nil
}
