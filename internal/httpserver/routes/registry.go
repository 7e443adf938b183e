package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
)

// Registrar mounts one route group and reports whether it did. Groups whose
// dependencies are absent from deps stay unmounted, which is how the same
// router serves both the snapshot server and the agent control API.
type Registrar func(r chi.Router, d deps.Deps) bool

type group struct {
	name string
	reg  Registrar
}

var registry []group

// Register adds a named route group. Called from init().
func Register(name string, reg Registrar) {
	registry = append(registry, group{name: name, reg: reg})
}

// RegisterAll mounts every group and returns the names of those mounted.
func RegisterAll(r chi.Router, d deps.Deps) []string {
	var mounted []string
	for _, g := range registry {
		if g.reg(r, d) {
			mounted = append(mounted, g.name)
		}
	}
	return mounted
}
