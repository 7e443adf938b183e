package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
)

func TestGarbageCollector_Collect(t *testing.T) {
	log := logger.New("error", false)
	svc := store.NewService(memory.New(), log, 10)
	ctx := context.Background()

	now := time.Now()
	items := []domain.Item{{Kind: domain.KindBookmark, URL: "https://keep.example.com", Title: "keep", FolderPath: "toolbar"}}
	tombstones := []domain.Tombstone{
		{URL: "https://recent.example.com", DeletedAt: now.Add(-10 * 24 * time.Hour).UnixMilli()}, // 10 days ago
		{URL: "https://old.example.com", DeletedAt: now.Add(-35 * 24 * time.Hour).UnixMilli()},    // 35 days ago
	}
	if _, err := svc.Push(ctx, "alice", domain.PushRequest{Items: items, Tombstones: tombstones, Source: "test"}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	// Account without tombstones must be left alone
	if _, err := svc.Push(ctx, "bob", domain.PushRequest{Items: items, Source: "test"}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	// Create GC with 30 day threshold
	gc := NewGarbageCollector(svc, log, 24*time.Hour, 30*24*time.Hour)

	if err := gc.Collect(ctx); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	snap, err := svc.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Should have 1 tombstone left (recent)
	if len(snap.Tombstones) != 1 {
		t.Fatalf("Expected 1 tombstone after GC, got %d", len(snap.Tombstones))
	}
	if snap.Tombstones[0].URL != "https://recent.example.com" {
		t.Errorf("Recent tombstone was incorrectly removed, kept %q", snap.Tombstones[0].URL)
	}

	// Pruning is maintenance, not a new snapshot
	if snap.Version != 1 {
		t.Errorf("Version = %d, want 1", snap.Version)
	}
	if snap.Checksum != domain.Checksum(items) {
		t.Error("Checksum changed after GC")
	}

	bob, err := svc.Get(ctx, "bob")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if bob.Version != 1 || bob.Source != "test" {
		t.Errorf("Untouched account was rewritten: version=%d source=%q", bob.Version, bob.Source)
	}
}

func TestNewGarbageCollectorDefaultThreshold(t *testing.T) {
	gc := NewGarbageCollector(nil, logger.New("error", false), time.Hour, 0)
	if gc.threshold != DefaultGCThreshold {
		t.Errorf("threshold = %v, want %v", gc.threshold, DefaultGCThreshold)
	}
}
