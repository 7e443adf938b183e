package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/store"
)

const (
	// maxTxRetries bounds optimistic-lock retries when a snapshot changes under WATCH.
	maxTxRetries = 16

	// txBackoffStep scales the jittered pause between lost WATCH races.
	txBackoffStep = 2 * time.Millisecond
)

// Store handles Redis operations for snapshots and version history
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// GetSnapshot retrieves an account's snapshot from Redis
func (s *Store) GetSnapshot(ctx context.Context, account string) (*domain.Snapshot, error) {
	return loadSnapshot(ctx, s.client, account)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func loadSnapshot(ctx context.Context, c getter, account string) (*domain.Snapshot, error) {
	data, err := c.Get(ctx, SnapshotKey(account)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.EmptySnapshot(), nil
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.Items == nil {
		snap.Items = []domain.Item{}
	}
	if snap.Tombstones == nil {
		snap.Tombstones = []domain.Tombstone{}
	}
	return &snap, nil
}

// UpdateSnapshot applies fn under WATCH on the snapshot key and retries when
// a concurrent writer got there first
func (s *Store) UpdateSnapshot(ctx context.Context, account string, fn store.Mutation) (*domain.Snapshot, bool, error) {
	key := SnapshotKey(account)

	var (
		result  *domain.Snapshot
		changed bool
	)
	txf := func(tx *redis.Tx) error {
		cur, err := loadSnapshot(ctx, tx, account)
		if err != nil {
			return err
		}

		next, err := fn(store.CloneSnapshot(cur))
		if errors.Is(err, store.ErrNoChange) {
			result, changed = cur, false
			return nil
		}
		if err != nil {
			return err
		}

		next = store.CloneSnapshot(next)
		next.Version = store.NextVersion(cur, next)
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, AllAccountsKey(), account)
			return nil
		})
		if err != nil {
			return err
		}
		result, changed = next, true
		return nil
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, changed, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, false, fmt.Errorf("failed to update snapshot: %w", err)
		}
		if err := txBackoff(ctx, attempt); err != nil {
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("failed to update snapshot for %s: %w", account, store.ErrContention)
}

// txBackoff sleeps a random slice of (attempt+1) steps so writers that lost
// the same race do not collide again in lockstep.
func txBackoff(ctx context.Context, attempt int) error {
	d := rand.N(time.Duration(attempt+1) * txBackoffStep)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Accounts returns every account holding a snapshot
func (s *Store) Accounts(ctx context.Context) ([]string, error) {
	accounts, err := s.client.SMembers(ctx, AllAccountsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	sort.Strings(accounts)
	return accounts, nil
}

// AppendVersion pushes rec onto the account's history and trims it to keep entries
func (s *Store) AppendVersion(ctx context.Context, account string, rec *domain.VersionRecord, keep int) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal version: %w", err)
	}

	key := VersionsKey(account)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	if keep > 0 {
		pipe.LTrim(ctx, key, 0, int64(keep-1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append version: %w", err)
	}
	return nil
}

// ListVersions returns up to limit history entries, newest first
func (s *Store) ListVersions(ctx context.Context, account string, limit int) ([]domain.VersionRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := s.client.LRange(ctx, VersionsKey(account), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	recs := make([]domain.VersionRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.VersionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			// Skip entries that couldn't be decoded
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
