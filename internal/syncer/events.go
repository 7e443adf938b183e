package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/host"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// settleTimeout bounds how long a finishing run waits for the event loop to
// hand over events that were already queued.
const settleTimeout = 2 * time.Second

type eventLoop struct {
	flush   chan chan struct{}
	stopped chan struct{}
}

// Run drains host change events until ctx is done. Events seen while idle
// update the local bookkeeping and arm a debounce timer. Events seen while a
// run is active are queued and absorbed when it ends. Syncs started here run
// on their own goroutine so draining never stops.
func (o *Orchestrator) Run(ctx context.Context, events <-chan host.Event) {
	loop := &eventLoop{
		flush:   make(chan chan struct{}),
		stopped: make(chan struct{}),
	}
	o.loopMu.Lock()
	o.loop = loop
	o.loopMu.Unlock()

	var (
		wg     sync.WaitGroup
		timer  *time.Timer
		timerC <-chan time.Time
	)
	arm := func() {
		if timer == nil {
			timer = time.NewTimer(o.opts.Debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(o.opts.Debounce)
		}
		timerC = timer.C
	}

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		close(loop.stopped)
		wg.Wait()
		o.loopMu.Lock()
		if o.loop == loop {
			o.loop = nil
		}
		o.loopMu.Unlock()
	}()

	o.log.Info("watching host tree for changes", logger.Duration("debounce", o.opts.Debounce))

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if o.observe(ctx, ev) {
				arm()
			}

		case done := <-loop.flush:
			o.drain(ctx, events)
			close(done)

		case <-o.followUp:
			arm()

		case <-timerC:
			timerC = nil
			wg.Add(1)
			go func() {
				defer wg.Done()
				res := o.Sync(ctx, "")
				if errors.Is(res.Err, ErrConcurrencyRejected) && !o.session.deferFollowUp() {
					o.requestFollowUp()
				}
			}()
		}
	}
}

// drain moves every event already queued on events into the bookkeeping.
func (o *Orchestrator) drain(ctx context.Context, events <-chan host.Event) {
	if events == nil {
		return
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.observe(ctx, ev)
		default:
			return
		}
	}
}

// settle asks the event loop, if one is running, to hand over the events
// already queued so writes made by the finishing run are attributed to it.
func (o *Orchestrator) settle() {
	o.loopMu.Lock()
	loop := o.loop
	o.loopMu.Unlock()
	if loop == nil {
		return
	}

	done := make(chan struct{})
	timer := time.NewTimer(settleTimeout)
	defer timer.Stop()
	select {
	case loop.flush <- done:
	case <-loop.stopped:
		return
	case <-timer.C:
		o.log.Warn("event loop did not answer flush request")
		return
	}
	select {
	case <-done:
	case <-loop.stopped:
	}
}

// observe records one change event and reports whether a debounced sync
// should follow.
func (o *Orchestrator) observe(ctx context.Context, ev host.Event) bool {
	s := o.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.pending = append(s.pending, ev)
		return false
	}
	return o.absorbLocked(ctx, []host.Event{ev}, false) > 0
}

// absorbLocked folds change events into the sync state and returns how many
// were not the agent's own writes. Callers hold the session lock.
func (o *Orchestrator) absorbLocked(ctx context.Context, events []host.Event, ignoreRemovals bool) int {
	external := make([]host.Event, 0, len(events))
	for _, ev := range events {
		if o.session.selfWrites[ev.ID] {
			continue
		}
		external = append(external, ev)
	}
	if len(external) == 0 {
		return 0
	}

	now := o.now().UnixMilli()
	err := o.commitState(ctx, func(live *domain.SyncState) {
		for _, ev := range external {
			switch ev.Type {
			case host.EventRemoved:
				if !ignoreRemovals {
					for _, url := range removedURLs(ev.Node) {
						live.RecordDeletion(url, now)
					}
				}
			case host.EventCreated:
				if ev.Node != nil && ev.Node.URL != "" {
					live.ForgetDeletion(ev.Node.URL)
				}
			}
			live.MarkModified(ev.ID)
		}
	})
	if err != nil {
		o.log.Warn("failed to record local changes", logger.Error(err))
	}
	o.log.Debug("local changes recorded", logger.Int("events", len(external)))
	return len(external)
}

func removedURLs(n *domain.Node) []string {
	if n == nil {
		return nil
	}
	var urls []string
	if n.URL != "" {
		urls = append(urls, n.URL)
	}
	domain.Walk(n, func(c *domain.Node) {
		if c.URL != "" {
			urls = append(urls, c.URL)
		}
	})
	return urls
}
