package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

type importResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Import triggers a manual homepage import
func Import(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.ImportTrigger <- struct{}{}:
			d.Logger.Info("manual homepage import triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			respond.JSON(w, http.StatusAccepted, importResponse{Triggered: true, Message: "import triggered"})
		default:
			d.Logger.Warn("homepage import already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			respond.JSON(w, http.StatusTooManyRequests, importResponse{Message: "import already in progress, please wait"})
		}
	}
}
