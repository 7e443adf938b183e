package syncer

import (
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/host"
)

const (
	StateIdle    = "idle"
	StateRunning = "running"
)

// SyncSession holds the run bookkeeping of one orchestrator: the re-entrancy
// flag, the failure counter and the events observed while a run is active.
type SyncSession struct {
	mu sync.Mutex

	running         bool
	forcePull       bool
	pendingFollowUp bool
	pending         []host.Event
	selfWrites      map[string]bool

	failures    int
	maxFailures int
	lastResult  *Result
}

func newSession(maxFailures int) *SyncSession {
	return &SyncSession{
		maxFailures: maxFailures,
		selfWrites:  map[string]bool{},
	}
}

// begin moves the session to running. Automatic syncs respect the circuit
// breaker; forced commands only respect re-entrancy.
func (s *SyncSession) begin(checkBreaker, forcePull bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrConcurrencyRejected
	}
	if checkBreaker && s.maxFailures > 0 && s.failures >= s.maxFailures {
		return ErrCircuitOpen
	}
	s.running = true
	s.forcePull = forcePull
	s.pendingFollowUp = false
	s.pending = nil
	s.selfWrites = map[string]bool{}
	return nil
}

// RecordWrite marks a host node as written by the running sync so its
// change events are not mistaken for user edits.
func (s *SyncSession) RecordWrite(id string) {
	s.mu.Lock()
	s.selfWrites[id] = true
	s.mu.Unlock()
}

// deferFollowUp asks for a follow-up once the active run ends. It returns
// false when no run is active.
func (s *SyncSession) deferFollowUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.pendingFollowUp = true
	return true
}

func (s *SyncSession) recordOutcome(err error) {
	switch {
	case err == nil:
		s.failures = 0
	case countsAsFailure(err):
		s.failures++
	}
}

func (s *SyncSession) circuitOpenLocked() bool {
	return s.maxFailures > 0 && s.failures >= s.maxFailures
}

func (s *SyncSession) reset() {
	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
}
