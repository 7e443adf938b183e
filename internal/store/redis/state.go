package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// StateStore keeps an agent's sync state in Redis, keyed by node ID
type StateStore struct {
	client *redis.Client
	nodeID string
}

// NewStateStore creates a state store for one agent
func NewStateStore(client *redis.Client, nodeID string) *StateStore {
	return &StateStore{client: client, nodeID: nodeID}
}

// Load returns a fresh state when the agent never saved one
func (s *StateStore) Load(ctx context.Context) (*domain.SyncState, error) {
	data, err := s.client.Get(ctx, StateKey(s.nodeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.NewSyncState(), nil
		}
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	st := domain.NewSyncState()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync state: %w", err)
	}
	if st.LocallyModified == nil {
		st.LocallyModified = map[string]bool{}
	}
	return st, nil
}

// Save stores the state without expiry
func (s *StateStore) Save(ctx context.Context, st *domain.SyncState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	if err := s.client.Set(ctx, StateKey(s.nodeID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}
