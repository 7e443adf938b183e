package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
)

func newService() *store.Service {
	return store.NewService(memory.New(), logger.New("error", false), 3)
}

func bm(url, title, path string, idx int) domain.Item {
	return domain.Item{Kind: domain.KindBookmark, URL: url, Title: title, FolderPath: path, Index: idx}
}

func TestPushStoresAndSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	req := domain.PushRequest{
		Items:      []domain.Item{bm("https://a", "A", "toolbar", 0)},
		Tombstones: []domain.Tombstone{{URL: "https://gone", DeletedAt: 10}},
		Source:     "agent-1",
	}
	first, err := svc.Push(ctx, "alice", req)
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, domain.Checksum(req.Items), first.Checksum)

	// Same content under a different host path spelling and host ID.
	again := req
	again.Items = []domain.Item{{Kind: domain.KindBookmark, ID: "99", URL: "https://a", Title: "A", FolderPath: "Bookmarks Bar", Index: 0}}
	second, err := svc.Push(ctx, "alice", again)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, int64(1), second.Version)

	// Only the tombstones differ: that is a write.
	moreTombs := req
	moreTombs.Tombstones = append(moreTombs.Tombstones, domain.Tombstone{URL: "https://old", DeletedAt: 11})
	third, err := svc.Push(ctx, "alice", moreTombs)
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	assert.Equal(t, int64(2), third.Version)

	snap, err := svc.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, snap.Tombstones, 2)
	assert.Equal(t, "agent-1", snap.Source)
}

func TestPushEmptyOnFreshAccountIsWritten(t *testing.T) {
	resp, err := newService().Push(context.Background(), "bob", domain.PushRequest{})
	require.NoError(t, err)
	assert.False(t, resp.Skipped)
	assert.Equal(t, int64(1), resp.Version)
}

func TestAccountsAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	_, err := svc.Push(ctx, "alice", domain.PushRequest{Items: []domain.Item{bm("https://a", "A", "toolbar", 0)}})
	require.NoError(t, err)

	snap, err := svc.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Equal(t, int64(0), snap.Version)
}

func TestVersionsRetention(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	_, err := svc.Push(ctx, "alice", domain.PushRequest{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		rec, err := svc.SaveVersion(ctx, "alice", domain.VersionRequest{
			BookmarkData: json.RawMessage(`{"bookmarks":[]}`),
			SourceType:   "sync",
			DeviceName:   "laptop",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Version)
		assert.NotEmpty(t, rec.ID)
	}

	recs, err := svc.Versions(ctx, "alice", 100)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	_, err = svc.SaveVersion(ctx, "alice", domain.VersionRequest{BookmarkData: json.RawMessage(`{`), SourceType: "sync"})
	assert.Error(t, err)
}

func TestPruneTombstones(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	now := time.Now()

	_, err := svc.Push(ctx, "alice", domain.PushRequest{
		Items: []domain.Item{bm("https://a", "A", "toolbar", 0)},
		Tombstones: []domain.Tombstone{
			{URL: "https://ancient", DeletedAt: now.Add(-40 * 24 * time.Hour).UnixMilli()},
			{URL: "https://recent", DeletedAt: now.Add(-time.Hour).UnixMilli()},
			{URL: "https://unknown"},
		},
	})
	require.NoError(t, err)
	_, err = svc.Push(ctx, "bob", domain.PushRequest{})
	require.NoError(t, err)
	before, err := svc.Get(ctx, "alice")
	require.NoError(t, err)

	removed, err := svc.PruneTombstones(ctx, domain.TombstoneMaxAge)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	snap, err := svc.Get(ctx, "alice")
	require.NoError(t, err)
	urls := []string{}
	for _, ts := range snap.Tombstones {
		urls = append(urls, ts.URL)
	}
	assert.Equal(t, []string{"https://recent", "https://unknown"}, urls)
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, before.Version, snap.Version)
	assert.Equal(t, before.Checksum, snap.Checksum)

	removed, err = svc.PruneTombstones(ctx, domain.TombstoneMaxAge)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestAccountViewActsAsRemote(t *testing.T) {
	ctx := context.Background()
	view := newService().Bind("alice")

	resp, err := view.Push(ctx, domain.PushRequest{Items: []domain.Item{bm("https://a", "A", "toolbar", 0)}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Version)

	snap, err := view.Fetch(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)

	require.NoError(t, view.SaveVersion(ctx, domain.VersionRequest{BookmarkData: json.RawMessage(`{}`), SourceType: "force-push"}))
}
