package syncer

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// ForcePush overwrites the remote with the local tree and ledger. It skips
// the circuit breaker but not the re-entrancy guard.
func (o *Orchestrator) ForcePush(ctx context.Context) Result {
	const op = "force-push"
	if err := o.checkSource(""); err != nil {
		return o.reject(op, err)
	}
	if err := o.session.begin(false, false); err != nil {
		return o.reject(op, err)
	}

	start := o.now()
	stats, err := o.forcePush(ctx)
	return o.finish(op, start, stats, err)
}

func (o *Orchestrator) forcePush(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	st, err := o.snapshotState(ctx)
	if err != nil {
		return stats, err
	}
	startModified := st.ModifiedIDs()

	local, err := o.readLocal(ctx)
	if err != nil {
		return stats, err
	}
	local = domain.DedupeBookmarks(local)
	tombs := domain.GCTombstones(domain.MergeTombstones(st.Tombstones), o.now(), o.opts.TombstoneMaxAge)
	stats.Checksum = domain.Checksum(local)

	o.log.Warn("force push: overwriting remote with local tree",
		logger.Int("items", len(local)),
		logger.Int("tombstones", len(tombs)))

	resp, err := o.remote.Push(ctx, domain.PushRequest{
		Items:      local,
		Tombstones: tombs,
		Source:     o.opts.SourceID,
	})
	if err != nil {
		return stats, remoteError("force push snapshot", err)
	}
	stats.Pushed = true
	stats.ServerSkipped = resp.Skipped
	stats.RemoteVersion = resp.Version

	if !resp.Skipped {
		stats.VersionSaved = o.saveVersion(ctx, "force-push", local, tombs,
			fmt.Sprintf("force push: %d items", len(local)))
	}

	remoteChecksum := resp.Checksum
	if remoteChecksum == "" {
		remoteChecksum = stats.Checksum
	}
	err = o.commitState(ctx, func(live *domain.SyncState) {
		live.LastSyncTime = o.now().UnixMilli()
		live.LastRemoteChecksum = remoteChecksum
		live.ClearModified(startModified...)
		live.Tombstones = tombs
	})
	return stats, err
}

// ForcePull discards the contents of every host root container, rebuilds
// them from the remote and re-pushes the result so the checksum matches what
// this host materialized. Local tombstones are cleared.
func (o *Orchestrator) ForcePull(ctx context.Context) Result {
	const op = "force-pull"
	if err := o.checkSource(""); err != nil {
		return o.reject(op, err)
	}
	if err := o.session.begin(false, true); err != nil {
		return o.reject(op, err)
	}

	start := o.now()
	stats, err := o.forcePull(ctx)
	return o.finish(op, start, stats, err)
}

func (o *Orchestrator) forcePull(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	o.mut.Reset()
	if _, err := o.snapshotState(ctx); err != nil {
		return stats, err
	}

	snap, err := o.remote.Fetch(ctx)
	if err != nil {
		return stats, remoteError("fetch remote snapshot", err)
	}

	o.log.Warn("force pull: replacing local tree with remote snapshot",
		logger.Int("remote_items", len(snap.Items)),
		logger.Int64("remote_version", snap.Version))

	cleared := o.mut.Clear(ctx)
	stats.Deleted = cleared.Applied
	stats.Failed += len(cleared.Failed)
	if len(cleared.Failed) > 0 {
		return stats, hostError("clear host tree", cleared.Failed[0])
	}

	added := o.mut.ApplyAdds(ctx, domain.DedupeBookmarks(snap.Items))
	stats.Added = added.Applied
	stats.Failed += len(added.Failed)

	final, err := o.readLocal(ctx)
	if err != nil {
		return stats, err
	}
	stats.Checksum = domain.Checksum(final)

	resp, err := o.remote.Push(ctx, domain.PushRequest{
		Items:      final,
		Tombstones: snap.Tombstones,
		Source:     o.opts.SourceID,
	})
	if err != nil {
		return stats, remoteError("re-anchor remote snapshot", err)
	}
	stats.Pushed = true
	stats.ServerSkipped = resp.Skipped
	stats.RemoteVersion = resp.Version

	remoteChecksum := resp.Checksum
	if remoteChecksum == "" {
		remoteChecksum = stats.Checksum
	}
	err = o.commitState(ctx, func(live *domain.SyncState) {
		live.LastSyncTime = o.now().UnixMilli()
		live.LastRemoteChecksum = remoteChecksum
		live.LocallyModified = map[string]bool{}
		live.Tombstones = nil
	})
	return stats, err
}
