package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

const (
	// DefaultGCThreshold is the age after which tombstones are pruned
	DefaultGCThreshold = domain.TombstoneMaxAge // 30 days
)

// TombstonePruner drops expired tombstones from every stored snapshot.
type TombstonePruner interface {
	PruneTombstones(ctx context.Context, maxAge time.Duration) (int, error)
}

// GarbageCollector handles cleanup of expired tombstones on the snapshot server
type GarbageCollector struct {
	pruner    TombstonePruner
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	stopCh    chan struct{}
}

// NewGarbageCollector creates a new garbage collector
func NewGarbageCollector(
	pruner TombstonePruner,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *GarbageCollector {
	if threshold == 0 {
		threshold = DefaultGCThreshold
	}

	return &GarbageCollector{
		pruner:    pruner,
		logger:    log,
		interval:  interval,
		threshold: threshold,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic garbage collection process
func (gc *GarbageCollector) Start(ctx context.Context) error {
	// Run immediately on start
	if err := gc.Collect(ctx); err != nil {
		gc.logger.Warn("initial garbage collection failed",
			logger.Error(err))
	}

	// Start periodic collection
	ticker := time.NewTicker(gc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := gc.Collect(ctx); err != nil {
					gc.logger.Error("garbage collection failed",
						logger.Error(err))
				}
			case <-gc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the garbage collector
func (gc *GarbageCollector) Stop() {
	close(gc.stopCh)
}

// Collect prunes tombstones older than the threshold from all accounts
func (gc *GarbageCollector) Collect(ctx context.Context) error {
	gc.logger.Debug("running tombstone garbage collection",
		logger.Duration("threshold", gc.threshold))

	removed, err := gc.pruner.PruneTombstones(ctx, gc.threshold)
	if err != nil {
		return err
	}

	if removed > 0 {
		gc.logger.Info("garbage collection completed",
			logger.Int("tombstones_removed", removed))
	} else {
		gc.logger.Debug("no tombstones to garbage collect")
	}

	return nil
}
