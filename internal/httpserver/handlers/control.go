package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
)

// resultStatus maps a command result to an HTTP status. Rejections are
// conflicts, failures are bad gateways since they come from the remote side
// or the host tree.
func resultStatus(res syncer.Result) int {
	switch {
	case res.Success:
		return http.StatusOK
	case res.RequiresAuth:
		return http.StatusUnauthorized
	case res.Rejected():
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeResult(w http.ResponseWriter, d deps.Deps, res syncer.Result) {
	d.Logger.Debug("control command answered",
		logger.String("op", res.Op),
		logger.Bool("success", res.Success))
	respond.JSON(w, resultStatus(res), res)
}

// Sync runs one reconciliation, optionally for ?source=<id>.
func Sync(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, d, d.Agent.Sync(r.Context(), r.URL.Query().Get("source")))
	}
}

// ForcePush overwrites the remote snapshot with the local tree.
func ForcePush(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, d, d.Agent.ForcePush(r.Context()))
	}
}

// ForcePull replaces the local tree with the remote snapshot.
func ForcePull(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, d, d.Agent.ForcePull(r.Context()))
	}
}

// Reset closes the circuit breaker.
func Reset(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Agent.ResetFailures()
		respond.OK(w, d.Agent.Status(r.Context()))
	}
}

// Status reports the agent state.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.OK(w, d.Agent.Status(r.Context()))
	}
}
