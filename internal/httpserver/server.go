// internal/httpserver/server.go
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/routes"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// DefaultRequestTimeout applies when deps leave RequestTimeout unset.
const DefaultRequestTimeout = 30 * time.Second

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http    *http.Server
	logger  logger.Logger
	started time.Time
}

// NewRouter builds the router (middlewares, route registration).
func NewRouter(loggerClient logger.Logger, d deps.Deps) chi.Router {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()

	// --- Global middlewares (safe defaults)
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)        // X-Request-ID on each request
	r.Use(middleware.Recoverer)        // never crash the process on panic
	r.Use(middleware.Timeout(timeout)) // per-request timeout
	r.Use(mw.Log(loggerClient))        // structured access logs

	mounted := routes.RegisterAll(r, d)
	loggerClient.Debug("routes mounted", logger.Strings("groups", mounted))
	return r
}

// New builds the HTTP server listening on addr.
func New(addr string, loggerClient logger.Logger, d deps.Deps) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(loggerClient, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      d.RequestTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &Server{
		http:    s,
		logger:  loggerClient,
		started: d.StartTime,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	s.logger.Infof("HTTP server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	// http.ErrServerClosed is expected on graceful shutdown.
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down...")
	return s.http.Shutdown(ctx)
}
