package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/host"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/mutator"
	"github.com/MrSnakeDoc/marksync/internal/remote"
	"github.com/MrSnakeDoc/marksync/internal/state"
)

const (
	DefaultMaxFailures = 5
	DefaultDebounce    = 2 * time.Second
)

// Options tune an Orchestrator.
type Options struct {
	SourceID        string
	DeviceName      string
	MaxFailures     int
	Debounce        time.Duration
	TombstoneMaxAge time.Duration
}

// Orchestrator runs reconciliation between the host tree and the remote
// snapshot, one run at a time.
type Orchestrator struct {
	tree   host.Tree
	remote remote.Client
	store  state.Store
	log    logger.Logger
	mut    *mutator.Mutator
	opts   Options
	now    func() time.Time

	session  *SyncSession
	followUp chan struct{}

	stateMu sync.Mutex
	st      *domain.SyncState

	loopMu sync.Mutex
	loop   *eventLoop
}

// New creates an orchestrator. A nil client leaves the source disconnected.
func New(tree host.Tree, client remote.Client, store state.Store, log logger.Logger, opts Options) *Orchestrator {
	if opts.MaxFailures == 0 {
		opts.MaxFailures = DefaultMaxFailures
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.TombstoneMaxAge <= 0 {
		opts.TombstoneMaxAge = domain.TombstoneMaxAge
	}
	if opts.SourceID == "" {
		opts.SourceID = "default"
	}

	o := &Orchestrator{
		tree:     tree,
		remote:   client,
		store:    store,
		log:      log,
		opts:     opts,
		now:      time.Now,
		session:  newSession(opts.MaxFailures),
		followUp: make(chan struct{}, 1),
	}
	o.mut = mutator.New(tree, log, o.session)
	return o
}

// Mutator exposes the orchestrator's mutator, whose writes count as the agent's own.
func (o *Orchestrator) Mutator() *mutator.Mutator { return o.mut }

// Sync reconciles the host tree with the remote snapshot. sourceID may be
// empty to mean the configured source.
func (o *Orchestrator) Sync(ctx context.Context, sourceID string) Result {
	const op = "sync"
	if err := o.checkSource(sourceID); err != nil {
		return o.reject(op, err)
	}
	if err := o.session.begin(true, false); err != nil {
		return o.reject(op, err)
	}

	start := o.now()
	stats, err := o.run(ctx)
	return o.finish(op, start, stats, err)
}

func (o *Orchestrator) checkSource(sourceID string) error {
	if o.remote == nil {
		return ErrSourceNotConnected
	}
	if sourceID != "" && sourceID != o.opts.SourceID {
		return fmt.Errorf("%w: %q", ErrSourceNotConnected, sourceID)
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	o.mut.Reset()

	st, err := o.snapshotState(ctx)
	if err != nil {
		return stats, err
	}
	startModified := st.ModifiedIDs()

	local, err := o.readLocal(ctx)
	if err != nil {
		return stats, err
	}

	snap, err := o.remote.Fetch(ctx)
	if err != nil {
		return stats, remoteError("fetch remote snapshot", err)
	}

	// Deletions strictly precede classification.
	applicable := domain.FilterApplicable(snap.Tombstones, st.Tombstones, st.LastSyncTime)
	deleted := o.mut.ApplyDeletions(ctx, applicable, local, st.LocallyModified)
	stats.Deleted = deleted.Applied
	stats.Failed += len(deleted.Failed)

	ledger := domain.MergeTombstones(st.Tombstones, applicable)
	merged := domain.MergeTombstones(st.Tombstones, snap.Tombstones)

	local, err = o.readLocal(ctx)
	if err != nil {
		return stats, err
	}

	cls := domain.Classify(snap.Items, local, merged, st.LocallyModified)
	stats.Suppressed = len(cls.Suppressed)

	added := o.mut.ApplyAdds(ctx, cls.ToAdd)
	stats.Added = added.Applied
	stats.Failed += len(added.Failed)

	updated := o.mut.ApplyUpdates(ctx, cls.ToUpdate)
	stats.Updated = updated.Applied
	stats.Failed += len(updated.Failed)

	final, err := o.readLocal(ctx)
	if err != nil {
		return stats, err
	}
	final = domain.DedupeBookmarks(final)
	checksum := domain.Checksum(final)
	stats.Checksum = checksum

	// A URL re-created after its deletion must not carry the tombstone
	// forward, or peers that remember it delete the bookmark again.
	ledger = domain.DropSuperseded(ledger, final)
	merged = domain.DropSuperseded(merged, final)

	changed := stats.Deleted+stats.Added+stats.Updated > 0
	needPush := changed ||
		checksum != snap.Checksum ||
		!domain.SameTombstones(merged, snap.Tombstones) ||
		len(startModified) > 0

	if !needPush {
		stats.NoOp = true
		stats.RemoteVersion = snap.Version
		o.log.Debug("local and remote already agree, nothing to push",
			logger.String("checksum", checksum),
			logger.Int64("remote_version", snap.Version))
		err := o.commitState(ctx, func(live *domain.SyncState) {
			live.LastSyncTime = o.now().UnixMilli()
			live.LastRemoteChecksum = snap.Checksum
			live.Tombstones = domain.GCTombstones(ledger, o.now(), o.opts.TombstoneMaxAge)
		})
		return stats, err
	}

	resp, err := o.remote.Push(ctx, domain.PushRequest{
		Items:      final,
		Tombstones: merged,
		Source:     o.opts.SourceID,
	})
	if err != nil {
		return stats, remoteError("push snapshot", err)
	}
	stats.Pushed = true
	stats.ServerSkipped = resp.Skipped
	stats.RemoteVersion = resp.Version

	if !resp.Skipped && contributed(startModified, ledger, snap, final) {
		summary := fmt.Sprintf("sync: %d added, %d updated, %d deleted, %d local edits",
			stats.Added, stats.Updated, stats.Deleted, len(startModified))
		stats.VersionSaved = o.saveVersion(ctx, "sync", final, merged, summary)
	}

	remoteChecksum := resp.Checksum
	if remoteChecksum == "" {
		remoteChecksum = checksum
	}
	err = o.commitState(ctx, func(live *domain.SyncState) {
		live.LastSyncTime = o.now().UnixMilli()
		live.LastRemoteChecksum = remoteChecksum
		live.ClearModified(startModified...)
		live.Tombstones = domain.GCTombstones(ledger, o.now(), o.opts.TombstoneMaxAge)
	})
	return stats, err
}

// contributed reports whether this agent added something the remote did not
// have: unsynced local edits, deletions it alone knew of, or bookmarks absent
// from the fetched snapshot.
func contributed(modified []string, localTombs []domain.Tombstone, snap *domain.Snapshot, final []domain.Item) bool {
	if len(modified) > 0 {
		return true
	}
	remoteTombs := domain.TombstoneIndex(snap.Tombstones)
	for _, t := range localTombs {
		if rt, ok := remoteTombs[t.URL]; !ok || t.DeletedAt > rt.DeletedAt {
			return true
		}
	}
	remoteURLs := domain.BookmarkURLs(snap.Items)
	for url := range domain.BookmarkURLs(final) {
		if !remoteURLs[url] {
			return true
		}
	}
	return false
}

func (o *Orchestrator) saveVersion(ctx context.Context, sourceType string, items []domain.Item, tombs []domain.Tombstone, summary string) bool {
	data, err := json.Marshal(domain.VersionData{Items: items, Tombstones: tombs})
	if err != nil {
		o.log.Warn("failed to encode version history entry", logger.Error(err))
		return false
	}
	err = o.remote.SaveVersion(ctx, domain.VersionRequest{
		BookmarkData:  data,
		SourceType:    sourceType,
		DeviceName:    o.opts.DeviceName,
		ChangeSummary: summary,
	})
	if err != nil {
		o.log.Warn("failed to save version history entry, continuing",
			logger.String("source_type", sourceType),
			logger.Error(err))
		return false
	}
	return true
}

func (o *Orchestrator) readLocal(ctx context.Context) ([]domain.Item, error) {
	root, err := o.tree.GetTree(ctx)
	if err != nil {
		return nil, hostError("read host tree", err)
	}
	return domain.Flatten(root), nil
}

// snapshotState returns a copy of the live state, loading it on first use.
func (o *Orchestrator) snapshotState(ctx context.Context) (*domain.SyncState, error) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	if err := o.ensureStateLocked(ctx); err != nil {
		return nil, err
	}
	return o.st.Clone(), nil
}

func (o *Orchestrator) ensureStateLocked(ctx context.Context) error {
	if o.st != nil {
		return nil
	}
	st, err := o.store.Load(ctx)
	if err != nil {
		return &TransientError{Op: "load sync state", Err: err}
	}
	o.st = st
	return nil
}

// commitState applies fn to the live state and persists it. The live state
// is only replaced when the save succeeds.
func (o *Orchestrator) commitState(ctx context.Context, fn func(live *domain.SyncState)) error {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	if err := o.ensureStateLocked(ctx); err != nil {
		return err
	}
	next := o.st.Clone()
	fn(next)
	if err := o.store.Save(ctx, next); err != nil {
		return &TransientError{Op: "save sync state", Err: err}
	}
	o.st = next
	return nil
}

func (o *Orchestrator) reject(op string, err error) Result {
	res := Result{Op: op, Err: err, Error: err.Error()}
	if errors.Is(err, ErrCircuitOpen) {
		res.RetryLimitReached = true
	}
	o.log.Debug("command rejected",
		logger.String("op", op),
		logger.Error(err))
	return res
}

// finish ends the run: it collects change events still in flight, settles
// the failure counter, absorbs events observed during the run and schedules
// a single follow-up when any of them came from someone else.
func (o *Orchestrator) finish(op string, start time.Time, stats *Stats, err error) Result {
	if stats != nil {
		stats.Duration = o.now().Sub(start)
	}
	o.settle()

	s := o.session
	s.mu.Lock()
	s.recordOutcome(err)
	external := o.absorbLocked(context.Background(), s.pending, s.forcePull)
	followUp := s.pendingFollowUp || external > 0
	s.pending = nil
	s.selfWrites = map[string]bool{}
	s.running = false
	s.forcePull = false
	s.pendingFollowUp = false

	res := Result{Op: op, Success: err == nil, Stats: stats}
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		res.RequiresAuth = errors.Is(err, ErrAuthRequired)
		res.RetryLimitReached = s.circuitOpenLocked()
	}
	last := res
	s.lastResult = &last
	failures := s.failures
	s.mu.Unlock()

	if followUp {
		o.requestFollowUp()
	}
	o.logResult(res, failures, followUp)
	return res
}

func (o *Orchestrator) logResult(res Result, failures int, followUp bool) {
	fields := []logger.Field{
		logger.String("op", res.Op),
		logger.Bool("follow_up", followUp),
	}
	if st := res.Stats; st != nil {
		fields = append(fields,
			logger.Int("added", st.Added),
			logger.Int("updated", st.Updated),
			logger.Int("deleted", st.Deleted),
			logger.Int("suppressed", st.Suppressed),
			logger.Int("failed_items", st.Failed),
			logger.Bool("skipped", st.Skipped()),
			logger.Int64("remote_version", st.RemoteVersion),
			logger.Duration("took", st.Duration))
	}
	switch {
	case res.Success:
		o.log.Info("sync finished", fields...)
	case res.RequiresAuth:
		o.log.Warn("sync needs authentication", append(fields, logger.Error(res.Err))...)
	default:
		o.log.Error("sync failed", append(fields,
			logger.Int("consecutive_failures", failures),
			logger.Bool("retry_limit_reached", res.RetryLimitReached),
			logger.Error(res.Err))...)
	}
}

func (o *Orchestrator) requestFollowUp() {
	select {
	case o.followUp <- struct{}{}:
	default:
	}
}

// ResetFailures closes the circuit breaker.
func (o *Orchestrator) ResetFailures() {
	o.session.reset()
	o.log.Info("sync failure counter reset")
}

// Status reports the session and persisted bookkeeping.
func (o *Orchestrator) Status(ctx context.Context) Status {
	s := o.session
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		State:               StateIdle,
		SourceID:            o.opts.SourceID,
		Connected:           o.remote != nil,
		PendingFollowUp:     s.pendingFollowUp || len(s.pending) > 0,
		ConsecutiveFailures: s.failures,
		MaxFailures:         s.maxFailures,
		CircuitOpen:         s.circuitOpenLocked(),
	}
	if s.running {
		status.State = StateRunning
	}
	if s.lastResult != nil {
		last := *s.lastResult
		status.LastResult = &last
	}

	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	if err := o.ensureStateLocked(ctx); err != nil {
		o.log.Warn("failed to load sync state for status", logger.Error(err))
		return status
	}
	status.LastSyncTime = o.st.LastSyncTime
	status.LastRemoteChecksum = o.st.LastRemoteChecksum
	status.LocallyModified = len(o.st.LocallyModified)
	status.Tombstones = len(o.st.Tombstones)
	return status
}

// DeletedURLs returns the URLs currently held in the local tombstone ledger.
func (o *Orchestrator) DeletedURLs(ctx context.Context) (map[string]bool, error) {
	st, err := o.snapshotState(ctx)
	if err != nil {
		return nil, err
	}
	urls := make(map[string]bool, len(st.Tombstones))
	for _, t := range st.Tombstones {
		urls[t.URL] = true
	}
	return urls, nil
}
