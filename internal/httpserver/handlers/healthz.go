package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	Role          string  `json:"role"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

// role names the process behind the probe.
func role(d deps.Deps) string {
	switch {
	case d.Snapshots != nil:
		return "server"
	case d.Agent != nil:
		return "agent"
	default:
		return "unknown"
	}
}

// Healthz is a liveness probe. It never touches the store.
func Healthz(d deps.Deps) http.HandlerFunc {
	now := d.TimeNow
	if now == nil {
		now = time.Now
	}
	body := healthzResponse{
		Status:    "ok",
		Role:      role(d),
		Version:   d.Version,
		Commit:    d.Commit,
		BuildDate: d.BuildDate,
		GoVersion: d.GoVersion,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := body
		resp.UptimeSeconds = now().Sub(d.StartTime).Seconds()
		respond.OK(w, resp)
	}
}
