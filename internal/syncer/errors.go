package syncer

import (
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/marksync/internal/remote"
)

var (
	// ErrAuthRequired means the remote rejected or never got a credential.
	ErrAuthRequired = errors.New("authentication required")
	// ErrSourceNotConnected means no remote is configured for the requested source.
	ErrSourceNotConnected = errors.New("sync source not connected")
	// ErrConcurrencyRejected means another run was already active.
	ErrConcurrencyRejected = errors.New("sync already in progress")
	// ErrCircuitOpen means the consecutive failure cap was reached.
	ErrCircuitOpen = errors.New("too many consecutive sync failures, reset required")
)

// TransientError wraps a network, server or host failure that aborted a run.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransientError) Unwrap() error { return e.Err }

func remoteError(op string, err error) error {
	if errors.Is(err, remote.ErrUnauthorized) {
		return fmt.Errorf("%s: %w: %v", op, ErrAuthRequired, err)
	}
	return &TransientError{Op: op, Err: err}
}

func hostError(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// countsAsFailure reports whether err feeds the circuit breaker.
func countsAsFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrAuthRequired),
		errors.Is(err, ErrSourceNotConnected),
		errors.Is(err, ErrConcurrencyRejected),
		errors.Is(err, ErrCircuitOpen):
		return false
	}
	return true
}
