package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
)

// Syncer runs one reconciliation.
type Syncer interface {
	Sync(ctx context.Context, sourceID string) syncer.Result
}

// SyncScheduler triggers periodic syncs, plus one on every manual trigger.
type SyncScheduler struct {
	syncer        Syncer
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewSyncScheduler creates a new sync scheduler. manualTrigger may be nil.
func NewSyncScheduler(
	s Syncer,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SyncScheduler {
	return &SyncScheduler{
		syncer:        s,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start runs a first sync and then keeps syncing on every tick.
// Failed runs are logged by the orchestrator and retried on the next tick.
func (ss *SyncScheduler) Start(ctx context.Context) error {
	ss.RunOnce(ctx)

	ticker := time.NewTicker(ss.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ss.RunOnce(ctx)
			case <-ss.manualTrigger:
				ss.logger.Info("manual sync triggered")
				ss.RunOnce(ctx)
			case <-ss.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the scheduler
func (ss *SyncScheduler) Stop() {
	close(ss.stopCh)
}

// RunOnce performs a single sync and returns its result.
func (ss *SyncScheduler) RunOnce(ctx context.Context) syncer.Result {
	res := ss.syncer.Sync(ctx, "")
	if res.Rejected() {
		ss.logger.Debug("scheduled sync not started",
			logger.String("reason", res.Error))
	}
	return res
}
