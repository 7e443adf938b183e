package deps

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
)

// Agent is the command surface of a running sync agent.
type Agent interface {
	Sync(ctx context.Context, sourceID string) syncer.Result
	ForcePush(ctx context.Context) syncer.Result
	ForcePull(ctx context.Context) syncer.Result
	ResetFailures()
	Status(ctx context.Context) syncer.Status
}

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time                // for testing, defaults to time.Now
	AllowedHosts   []string                        // Host headers allowed to access the snapshot API
	AllowedCIDRS   []string                        // IPs allowed to access probes and the control API
	TrustProxy     bool                            // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateBurst      int                             // per-client burst on snapshot routes, 0 disables rate limiting
	RatePerMin     int                             // per-client refill on snapshot routes
	JWTSecret      string                          // HS256 secret for bearer tokens
	Validate       *validator.Validate             // request body validation
	Ready          func(ctx context.Context) error // readiness check, nil means always ready
	Snapshots      *store.Service                  // snapshot store (server mode, nil on agents)
	Agent          Agent                           // sync agent (agent mode, nil on the server)
	ImportTrigger  chan struct{}                   // Channel to trigger a manual homepage import (nil if disabled)
	RequestTimeout time.Duration                   // per-request timeout
}
