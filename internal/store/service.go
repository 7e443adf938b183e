package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// Service is the server-side behavior on top of a SnapshotStore:
// last-writer-wins pushes with duplicate suppression, version history and
// tombstone pruning.
type Service struct {
	store        SnapshotStore
	log          logger.Logger
	keepVersions int
	now          func() time.Time
}

func NewService(s SnapshotStore, log logger.Logger, keepVersions int) *Service {
	if keepVersions <= 0 {
		keepVersions = DefaultVersionRetention
	}
	return &Service{
		store:        s,
		log:          log,
		keepVersions: keepVersions,
		now:          time.Now,
	}
}

// Get returns the account's snapshot.
func (s *Service) Get(ctx context.Context, account string) (*domain.Snapshot, error) {
	snap, err := s.store.GetSnapshot(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, nil
}

// Push replaces the account's snapshot. A push whose items checksum and
// tombstone set both match the stored snapshot is acknowledged without a write.
func (s *Service) Push(ctx context.Context, account string, req domain.PushRequest) (*domain.PushResponse, error) {
	items := req.Items
	if items == nil {
		items = []domain.Item{}
	}
	tombstones := domain.MergeTombstones(req.Tombstones)
	checksum := domain.Checksum(items)

	snap, changed, err := s.store.UpdateSnapshot(ctx, account, func(cur *domain.Snapshot) (*domain.Snapshot, error) {
		if cur.Version > 0 && cur.Checksum == checksum && domain.SameTombstones(cur.Tombstones, tombstones) {
			return nil, ErrNoChange
		}
		return &domain.Snapshot{
			Items:      items,
			Tombstones: tombstones,
			Checksum:   checksum,
			UpdatedAt:  s.now().UnixMilli(),
			Source:     req.Source,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	if changed {
		s.log.Info("snapshot stored",
			logger.String("account", account),
			logger.String("source", req.Source),
			logger.Int64("version", snap.Version),
			logger.Int("items", len(items)),
			logger.Int("tombstones", len(tombstones)))
	} else {
		s.log.Debug("push matches stored snapshot, skipped",
			logger.String("account", account),
			logger.String("source", req.Source))
	}

	return &domain.PushResponse{
		Version:  snap.Version,
		Checksum: snap.Checksum,
		Skipped:  !changed,
	}, nil
}

// SaveVersion appends a history entry tagged with the current snapshot version.
func (s *Service) SaveVersion(ctx context.Context, account string, req domain.VersionRequest) (*domain.VersionRecord, error) {
	if !json.Valid(req.BookmarkData) {
		return nil, errors.New("bookmarkData is not valid JSON")
	}
	snap, err := s.store.GetSnapshot(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	rec := &domain.VersionRecord{
		ID:            uuid.NewString(),
		Version:       snap.Version,
		CreatedAt:     s.now().UnixMilli(),
		BookmarkData:  req.BookmarkData,
		SourceType:    req.SourceType,
		DeviceName:    req.DeviceName,
		ChangeSummary: req.ChangeSummary,
	}
	if err := s.store.AppendVersion(ctx, account, rec, s.keepVersions); err != nil {
		return nil, fmt.Errorf("failed to append version: %w", err)
	}
	return rec, nil
}

// Versions lists the newest history entries.
func (s *Service) Versions(ctx context.Context, account string, limit int) ([]domain.VersionRecord, error) {
	if limit <= 0 || limit > s.keepVersions {
		limit = s.keepVersions
	}
	return s.store.ListVersions(ctx, account, limit)
}

// PruneTombstones drops tombstones older than maxAge from every account's
// snapshot and returns how many were removed.
func (s *Service) PruneTombstones(ctx context.Context, maxAge time.Duration) (int, error) {
	accounts, err := s.store.Accounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts: %w", err)
	}

	removed := 0
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		dropped := 0
		_, _, err := s.store.UpdateSnapshot(ctx, account, func(cur *domain.Snapshot) (*domain.Snapshot, error) {
			kept := domain.GCTombstones(cur.Tombstones, s.now(), maxAge)
			dropped = len(cur.Tombstones) - len(kept)
			if dropped == 0 {
				return nil, ErrNoChange
			}
			next := CloneSnapshot(cur)
			next.Tombstones = kept
			next.UpdatedAt = s.now().UnixMilli()
			next.Source = "gc"
			return next, nil
		})
		if err != nil {
			s.log.Warn("failed to prune tombstones",
				logger.String("account", account),
				logger.Error(err))
			continue
		}
		if dropped > 0 {
			s.log.Info("pruned expired tombstones",
				logger.String("account", account),
				logger.Int("removed", dropped))
		}
		removed += dropped
	}
	return removed, nil
}

func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// Bind returns a view of one account with the agent-side remote methods.
func (s *Service) Bind(account string) *AccountView {
	return &AccountView{svc: s, account: account}
}

// AccountView talks to the Service in-process as if it were the remote.
type AccountView struct {
	svc     *Service
	account string
}

func (v *AccountView) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	return v.svc.Get(ctx, v.account)
}

func (v *AccountView) Push(ctx context.Context, req domain.PushRequest) (*domain.PushResponse, error) {
	return v.svc.Push(ctx, v.account, req)
}

func (v *AccountView) SaveVersion(ctx context.Context, req domain.VersionRequest) error {
	_, err := v.svc.SaveVersion(ctx, v.account, req)
	return err
}
