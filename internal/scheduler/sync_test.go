package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
)

type countingSyncer struct {
	calls atomic.Int32
	done  chan struct{}
}

func (c *countingSyncer) Sync(ctx context.Context, sourceID string) syncer.Result {
	c.calls.Add(1)
	select {
	case c.done <- struct{}{}:
	default:
	}
	return syncer.Result{Op: "sync", Success: true}
}

func TestSyncSchedulerRunsOnStartAndTrigger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &countingSyncer{done: make(chan struct{}, 1)}
	trigger := make(chan struct{})
	ss := NewSyncScheduler(s, logger.New("error", false), time.Hour, trigger)

	if err := ss.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer ss.Stop()

	if got := s.calls.Load(); got != 1 {
		t.Fatalf("calls after Start() = %d, want 1", got)
	}
	<-s.done

	trigger <- struct{}{}
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("manual trigger did not run a sync")
	}
	if got := s.calls.Load(); got != 2 {
		t.Errorf("calls after trigger = %d, want 2", got)
	}
}

func TestSyncSchedulerTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &countingSyncer{done: make(chan struct{}, 1)}
	ss := NewSyncScheduler(s, logger.New("error", false), 10*time.Millisecond, nil)
	if err := ss.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer ss.Stop()

	deadline := time.After(2 * time.Second)
	for s.calls.Load() < 3 {
		select {
		case <-s.done:
		case <-deadline:
			t.Fatalf("only %d syncs after 2s", s.calls.Load())
		}
	}
}
