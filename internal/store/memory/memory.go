package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/store"
)

// Store keeps snapshots and version history in process memory.
// It backs tests and single-node servers without Redis.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.Snapshot      // account -> snapshot
	versions  map[string][]domain.VersionRecord // account -> history, newest first
}

// New creates an empty memory store
func New() *Store {
	return &Store{
		snapshots: make(map[string]*domain.Snapshot),
		versions:  make(map[string][]domain.VersionRecord),
	}
}

// GetSnapshot returns a copy of the account's snapshot
func (s *Store) GetSnapshot(_ context.Context, account string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[account]
	if !ok {
		return store.EmptySnapshot(), nil
	}
	return store.CloneSnapshot(snap), nil
}

// UpdateSnapshot runs fn under the write lock
func (s *Store) UpdateSnapshot(_ context.Context, account string, fn store.Mutation) (*domain.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.snapshots[account]
	if !ok {
		cur = store.EmptySnapshot()
	}

	next, err := fn(store.CloneSnapshot(cur))
	if errors.Is(err, store.ErrNoChange) {
		return store.CloneSnapshot(cur), false, nil
	}
	if err != nil {
		return nil, false, err
	}

	next = store.CloneSnapshot(next)
	next.Version = store.NextVersion(cur, next)
	s.snapshots[account] = next
	return store.CloneSnapshot(next), true, nil
}

// Accounts returns every account holding a snapshot, sorted
func (s *Store) Accounts(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]string, 0, len(s.snapshots))
	for account := range s.snapshots {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts, nil
}

// AppendVersion prepends rec and trims the history to keep entries
func (s *Store) AppendVersion(_ context.Context, account string, rec *domain.VersionRecord, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append([]domain.VersionRecord{*rec}, s.versions[account]...)
	if keep > 0 && len(history) > keep {
		history = history[:keep]
	}
	s.versions[account] = history
	return nil
}

// ListVersions returns up to limit entries, newest first
func (s *Store) ListVersions(_ context.Context, account string, limit int) ([]domain.VersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.versions[account]
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return append([]domain.VersionRecord{}, history...), nil
}

func (s *Store) Ping(context.Context) error { return nil }
