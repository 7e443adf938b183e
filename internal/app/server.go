package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/config"
	"github.com/MrSnakeDoc/marksync/internal/httpserver"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/scheduler"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/marksync/internal/store/redis"
	"github.com/MrSnakeDoc/marksync/internal/version"
)

// Server is the snapshot server process.
type Server struct {
	cfg         *config.ServerConfig
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	snapshots   *store.Service
	gc          *scheduler.GarbageCollector
}

// NewServer wires the snapshot store, the garbage collector and the HTTP API.
func NewServer(ctx context.Context, cfg *config.ServerConfig, loggerClient logger.Logger) (*Server, error) {
	var (
		backend     store.SnapshotStore
		redisClient *goredis.Client
	)
	switch cfg.Store {
	case "redis":
		// Initialize Redis early - fail fast if unavailable
		client, err := connectRedis(ctx, cfg.Redis, loggerClient)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		loggerClient.Info("Redis initialized successfully")
		redisClient = client
		backend = redisstore.NewStore(client)
	default:
		loggerClient.Warn("using in-memory snapshot store, snapshots are lost on restart")
		backend = memory.New()
	}

	snapshots := store.NewService(backend, loggerClient, cfg.VersionHistory)

	gc := scheduler.NewGarbageCollector(
		snapshots,
		loggerClient,
		cfg.GCInterval,
		cfg.TombstoneMaxAge,
	)

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		RateBurst:      cfg.RateBurst,
		RatePerMin:     cfg.RatePerMin,
		JWTSecret:      cfg.JWTSecret,
		Validate:       validator.New(),
		Ready:          snapshots.Ping,
		Snapshots:      snapshots,
		RequestTimeout: cfg.RequestTimeout,
	}

	return &Server{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg.ListenPort, loggerClient, d),
		redisClient: redisClient,
		snapshots:   snapshots,
		gc:          gc,
	}, nil
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Run() error {
	s.logger.Infof("🚀 Starting marksync server v%s on %s", version.Version, s.cfg.ListenPort)
	s.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start garbage collector
	if err := s.gc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start garbage collector: %w", err)
	}
	s.logger.Info("garbage collector started",
		logger.Duration("interval", s.cfg.GCInterval),
		logger.Duration("threshold", s.cfg.TombstoneMaxAge))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		s.gc.Stop()
		closeRedis(s.redisClient, s.logger)
		return err
	}

	// Stop garbage collector
	s.gc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	closeRedis(s.redisClient, s.logger)

	s.logger.Info("✅ marksync server stopped cleanly")
	return nil
}
