package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz reports whether the backing store answers.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				d.Logger.Warn("readiness check failed", logger.Error(err))
				respond.JSON(w, http.StatusServiceUnavailable, readyzResponse{Ready: false, Error: err.Error()})
				return
			}
		}
		respond.OK(w, readyzResponse{Ready: true})
	}
}
