package syncer

import (
	"errors"
	"time"
)

// Stats describes what one run did.
type Stats struct {
	Deleted    int `json:"deleted"`
	Added      int `json:"added"`
	Updated    int `json:"updated"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`

	// NoOp is set when nothing needed pushing.
	NoOp bool `json:"noOp,omitempty"`
	// Pushed is set when the remote accepted a push, ServerSkipped when it
	// found the push identical to what it held.
	Pushed        bool `json:"pushed,omitempty"`
	ServerSkipped bool `json:"serverSkipped,omitempty"`
	VersionSaved  bool `json:"versionSaved,omitempty"`

	RemoteVersion int64         `json:"remoteVersion,omitempty"`
	Checksum      string        `json:"checksum,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Skipped reports whether the run ended without the remote changing.
func (s *Stats) Skipped() bool { return s.NoOp || s.ServerSkipped }

// Result is the outcome of every command. Commands never return a Go error.
type Result struct {
	Op                string `json:"op"`
	Success           bool   `json:"success"`
	Stats             *Stats `json:"stats,omitempty"`
	Error             string `json:"error,omitempty"`
	RequiresAuth      bool   `json:"requiresAuth,omitempty"`
	RetryLimitReached bool   `json:"retryLimitReached,omitempty"`

	Err error `json:"-"`
}

// Rejected reports whether the command was refused before doing any work.
func (r Result) Rejected() bool {
	return errors.Is(r.Err, ErrConcurrencyRejected) ||
		errors.Is(r.Err, ErrCircuitOpen) ||
		errors.Is(r.Err, ErrSourceNotConnected)
}

// Status is the orchestrator state exposed to the shell.
type Status struct {
	State               string  `json:"state"`
	SourceID            string  `json:"sourceId,omitempty"`
	Connected           bool    `json:"connected"`
	PendingFollowUp     bool    `json:"pendingFollowUp"`
	ConsecutiveFailures int     `json:"consecutiveFailures"`
	MaxFailures         int     `json:"maxFailures"`
	CircuitOpen         bool    `json:"circuitOpen"`
	LastSyncTime        int64   `json:"lastSyncTime"`
	LastRemoteChecksum  string  `json:"lastRemoteChecksum,omitempty"`
	LocallyModified     int     `json:"locallyModified"`
	Tombstones          int     `json:"tombstones"`
	LastResult          *Result `json:"lastResult,omitempty"`
}
