package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
)

func init() { Register("control", registerControl) }

// registerControl mounts the agent command surface.
func registerControl(r chi.Router, d deps.Deps) bool {
	if d.Agent == nil {
		return false
	}

	ctl := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	ctl.Post("/sync", handlers.Sync(d))
	ctl.Post("/force-push", handlers.ForcePush(d))
	ctl.Post("/force-pull", handlers.ForcePull(d))
	ctl.Post("/reset", handlers.Reset(d))
	ctl.Get("/status", handlers.Status(d))

	if d.ImportTrigger != nil {
		ctl.Post("/import", handlers.Import(d))
	}
	return true
}
