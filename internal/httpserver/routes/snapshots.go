package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
)

func init() { Register("snapshots", registerSnapshots) }

// registerSnapshots mounts the snapshot store API. Only the server has one.
func registerSnapshots(r chi.Router, d deps.Deps) bool {
	if d.Snapshots == nil {
		return false
	}

	api := r.With(
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.Auth(d.JWTSecret, d.Logger),
	)
	if d.RateBurst > 0 {
		api = api.With(mw.RateLimit(mw.RateLimitConfig{
			Burst:        d.RateBurst,
			RefillPerMin: d.RatePerMin,
			MaxEntries:   10000,
			TrustProxy:   d.TrustProxy,
			Now:          d.TimeNow,
			Logger:       d.Logger,
		}))
	}

	api.Get("/bookmarks", handlers.GetSnapshot(d))
	api.Post("/bookmarks", handlers.PushSnapshot(d))
	api.Get("/versions", handlers.ListVersions(d))
	api.Post("/versions", handlers.SaveVersion(d))
	return true
}
