package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/store"
)

// MaxBodyBytes bounds POST bodies on snapshot routes.
const MaxBodyBytes = 32 << 20

// GetSnapshot returns the caller's current snapshot.
func GetSnapshot(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := mw.Account(r.Context())
		snap, err := d.Snapshots.Get(r.Context(), account)
		if err != nil {
			d.Logger.Error("failed to load snapshot",
				logger.String("account", account),
				logger.Error(err))
			respond.InternalError(w, "failed to load snapshot")
			return
		}
		respond.OK(w, snap)
	}
}

// PushSnapshot replaces the caller's snapshot unless it is unchanged.
func PushSnapshot(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.PushRequest
		if !decode(w, r, d, &req) {
			return
		}

		account := mw.Account(r.Context())
		if req.Source == "" {
			req.Source = mw.Device(r.Context())
		}
		resp, err := d.Snapshots.Push(r.Context(), account, req)
		if errors.Is(err, store.ErrContention) {
			d.Logger.Warn("snapshot push lost to concurrent writers",
				logger.String("account", account))
			w.Header().Set("Retry-After", "1")
			respond.Error(w, http.StatusServiceUnavailable, "contention", "snapshot is busy, retry")
			return
		}
		if err != nil {
			d.Logger.Error("failed to store snapshot",
				logger.String("account", account),
				logger.Error(err))
			respond.InternalError(w, "failed to store snapshot")
			return
		}
		respond.OK(w, resp)
	}
}

// SaveVersion appends a version-history entry.
func SaveVersion(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.VersionRequest
		if !decode(w, r, d, &req) {
			return
		}
		if !json.Valid(req.BookmarkData) || bytes.Equal(bytes.TrimSpace(req.BookmarkData), []byte("null")) {
			respond.BadRequest(w, "bookmarkData is not valid JSON")
			return
		}
		if req.DeviceName == "" {
			req.DeviceName = mw.Device(r.Context())
		}

		account := mw.Account(r.Context())
		rec, err := d.Snapshots.SaveVersion(r.Context(), account, req)
		if err != nil {
			d.Logger.Error("failed to save version",
				logger.String("account", account),
				logger.Error(err))
			respond.InternalError(w, "failed to save version")
			return
		}
		respond.Created(w, rec)
	}
}

type versionsResponse struct {
	Versions []domain.VersionRecord `json:"versions"`
}

// ListVersions returns the newest history entries, limited by ?limit=n.
func ListVersions(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				respond.BadRequest(w, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		account := mw.Account(r.Context())
		versions, err := d.Snapshots.Versions(r.Context(), account, limit)
		if err != nil {
			d.Logger.Error("failed to list versions",
				logger.String("account", account),
				logger.Error(err))
			respond.InternalError(w, "failed to list versions")
			return
		}
		if versions == nil {
			versions = []domain.VersionRecord{}
		}
		respond.OK(w, versionsResponse{Versions: versions})
	}
}

// decode reads and validates a JSON body, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, d deps.Deps, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.BadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	if d.Validate != nil {
		if err := d.Validate.Struct(v); err != nil {
			respond.Error(w, http.StatusBadRequest, "validation_failed", err.Error())
			return false
		}
	}
	return true
}
