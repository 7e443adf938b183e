package store

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// DefaultVersionRetention is how many history entries are kept per account.
const DefaultVersionRetention = 50

var (
	// ErrNoChange is returned by a Mutation that wants to leave the snapshot as is.
	ErrNoChange = errors.New("snapshot unchanged")

	// ErrContention means concurrent writers kept invalidating an update
	// until the retry budget ran out. The caller may try again.
	ErrContention = errors.New("snapshot update contended")
)

// Mutation computes the next snapshot from the current one. cur is never nil;
// an account without a snapshot yields an empty one at version 0.
// Returning ErrNoChange skips the write. The store bumps Version unless the
// mutation kept cur.Version of an existing snapshot, which maintenance writes do.
type Mutation func(cur *domain.Snapshot) (*domain.Snapshot, error)

// SnapshotStore keeps one snapshot and a bounded version history per account.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, account string) (*domain.Snapshot, error)

	// UpdateSnapshot applies fn atomically. It returns the stored snapshot
	// and whether a write happened.
	UpdateSnapshot(ctx context.Context, account string, fn Mutation) (*domain.Snapshot, bool, error)

	Accounts(ctx context.Context) ([]string, error)

	// AppendVersion stores rec and trims history to the newest keep entries.
	AppendVersion(ctx context.Context, account string, rec *domain.VersionRecord, keep int) error

	// ListVersions returns up to limit entries, newest first.
	ListVersions(ctx context.Context, account string, limit int) ([]domain.VersionRecord, error)

	Ping(ctx context.Context) error
}

// EmptySnapshot is what an account without data reads as.
func EmptySnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Items:      []domain.Item{},
		Tombstones: []domain.Tombstone{},
		Checksum:   domain.Checksum(nil),
	}
}

// NextVersion returns the version to store for next given cur.
func NextVersion(cur, next *domain.Snapshot) int64 {
	if cur.Version > 0 && next.Version == cur.Version {
		return cur.Version
	}
	return cur.Version + 1
}

// CloneSnapshot returns a deep copy of s.
func CloneSnapshot(s *domain.Snapshot) *domain.Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Items = append([]domain.Item{}, s.Items...)
	c.Tombstones = append([]domain.Tombstone{}, s.Tombstones...)
	return &c
}
