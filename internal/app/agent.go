package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/config"
	"github.com/MrSnakeDoc/marksync/internal/host"
	"github.com/MrSnakeDoc/marksync/internal/httpserver"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/remote"
	"github.com/MrSnakeDoc/marksync/internal/scheduler"
	"github.com/MrSnakeDoc/marksync/internal/state"
	redisstore "github.com/MrSnakeDoc/marksync/internal/store/redis"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
	"github.com/MrSnakeDoc/marksync/internal/utils"
	"github.com/MrSnakeDoc/marksync/internal/version"
)

// Agent is the sync agent process: one host tree, one orchestrator.
type Agent struct {
	cfg         *config.AgentConfig
	logger      logger.Logger
	tree        host.WatchedTree
	fileTree    *host.FileTree
	orch        *syncer.Orchestrator
	redisClient *goredis.Client
	importer    *scheduler.HomepageImporter

	importTrigger chan struct{}
}

// NewAgent opens the host tree and the sync state and builds the orchestrator.
// Nothing runs until Run is called.
func NewAgent(ctx context.Context, cfg *config.AgentConfig, loggerClient logger.Logger) (*Agent, error) {
	flavor, err := host.LookupFlavor(cfg.TreeFlavor)
	if err != nil {
		return nil, err
	}

	a := &Agent{cfg: cfg, logger: loggerClient}

	if cfg.TreeFile != "" {
		ft, err := host.OpenFileTree(cfg.TreeFile, flavor, loggerClient)
		if err != nil {
			return nil, fmt.Errorf("failed to open bookmark tree: %w", err)
		}
		a.fileTree = ft
		a.tree = ft
	} else {
		loggerClient.Warn("no tree file configured, bookmarks live in memory only")
		a.tree = host.NewMemoryTree(flavor)
	}

	var st state.Store
	switch cfg.StateBackend {
	case "redis":
		client, err := connectRedis(ctx, cfg.Redis, loggerClient)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redisClient = client
		st = redisstore.NewStateStore(client, cfg.DeviceName)
	default:
		st = state.NewFileStore(cfg.StateFile)
	}

	// A nil interface, not a nil *HTTPClient, marks the source as not connected.
	var client remote.Client
	if cfg.RemoteURL != "" {
		client = remote.NewHTTPClient(cfg.RemoteURL, cfg.Token, &http.Client{Timeout: cfg.HTTPTimeout})
	} else {
		loggerClient.Warn("no remote configured, syncs will be rejected until MARKSYNC_REMOTE_URL is set")
	}

	a.orch = syncer.New(a.tree, client, st, loggerClient, syncer.Options{
		SourceID:        cfg.SourceID,
		DeviceName:      cfg.DeviceName,
		MaxFailures:     cfg.MaxFailures,
		Debounce:        cfg.Debounce,
		TombstoneMaxAge: cfg.TombstoneMaxAge,
	})

	if cfg.HomepageBookmarks != "" {
		a.importTrigger = make(chan struct{}, 1)
		a.importer = scheduler.NewHomepageImporter(
			cfg.HomepageBookmarks,
			a.tree,
			a.orch,
			loggerClient,
			cfg.ImportInterval,
			a.importTrigger,
		)
	}

	return a, nil
}

// Orchestrator exposes the sync engine for one-shot commands.
func (a *Agent) Orchestrator() *syncer.Orchestrator { return a.orch }

// Import runs one Homepage import.
func (a *Agent) Import(ctx context.Context) (int, error) {
	if a.importer == nil {
		return 0, errors.New("no homepage bookmarks file configured (MARKSYNC_HOMEPAGE_BOOKMARKS)")
	}
	return a.importer.Import(ctx)
}

// Close releases the tree watcher and the Redis connection.
func (a *Agent) Close() {
	if a.fileTree != nil {
		utils.CloseLogged(a.fileTree, a.logger, "tree watcher")
	}
	closeRedis(a.redisClient, a.logger)
	a.redisClient = nil
}

// Run watches the host tree, syncs on changes and on a timer, and serves the
// control API until SIGINT/SIGTERM.
func (a *Agent) Run() error {
	a.logger.Infof("🚀 Starting marksync agent v%s for source %q (device %s)",
		version.Version, a.cfg.SourceID, a.cfg.DeviceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.Close()

	if a.fileTree != nil {
		if err := a.fileTree.Watch(ctx); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.orch.Run(ctx, a.tree.Events())
	}()

	syncScheduler := scheduler.NewSyncScheduler(a.orch, a.logger, a.cfg.SyncInterval, nil)
	if err := syncScheduler.Start(ctx); err != nil {
		stop()
		wg.Wait()
		return fmt.Errorf("failed to start sync scheduler: %w", err)
	}
	a.logger.Info("sync scheduler started", logger.Duration("interval", a.cfg.SyncInterval))

	if a.importer != nil {
		if err := a.importer.Start(ctx); err != nil {
			syncScheduler.Stop()
			stop()
			wg.Wait()
			return err
		}
		a.logger.Info("homepage importer started",
			logger.String("file", a.cfg.HomepageBookmarks),
			logger.Duration("interval", a.cfg.ImportInterval))
	}

	var control *httpserver.Server
	errCh := make(chan error, 1)
	if a.cfg.ControlAddr != "" {
		control = httpserver.New(a.cfg.ControlAddr, a.logger, deps.Deps{
			Logger:         a.logger,
			StartTime:      time.Now(),
			Version:        version.Version,
			Commit:         version.Commit,
			BuildDate:      version.BuildDate,
			GoVersion:      version.GoVersion,
			TimeNow:        time.Now,
			AllowedCIDRS:   a.cfg.AllowedCIDRS,
			Validate:       validator.New(),
			Agent:          a.orch,
			ImportTrigger:  a.importTrigger,
			RequestTimeout: a.cfg.ControlTimeout,
		})
		go func() {
			if err := control.Start(); err != nil {
				errCh <- fmt.Errorf("control server error: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	syncScheduler.Stop()
	if a.importer != nil {
		a.importer.Stop()
	}

	if control != nil && runErr == nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		if err := control.Stop(shutdownCtx); err != nil {
			runErr = fmt.Errorf("failed to stop control server: %w", err)
		}
		cancel()
	}

	stop()
	wg.Wait()

	if runErr == nil {
		a.logger.Info("✅ marksync agent stopped cleanly")
	}
	return runErr
}
