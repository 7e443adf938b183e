package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const redacted = "***REDACTED***"

// Common holds the settings shared by the server and the agent.
type Common struct {
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel      string // "debug" | "info" | "warn" | "error"
	PrettyLog     bool   // true => zap dev (color), false => zap prod (JSON)
	LogFile       string // optional rotating JSON log file
	LogMaxSizeMB  int    // rotate after this many megabytes
	LogMaxBackups int    // rotated files to keep

	Redis Redis
}

// Redis holds the connection settings. Addr is empty when redis is not used.
type Redis struct {
	Addr             string        // ex: "localhost:6379"
	User             string        // optional
	Password         string        // optional
	PasswordRequired bool          // true => require password, false => allow empty password
	DB               int           // Redis DB number
	DialTimeout      time.Duration // Redis dial timeout (ex: 5s)
	ReadTimeout      time.Duration // Redis read timeout (ex: 3s)
	WriteTimeout     time.Duration // Redis write timeout (ex: 3s)
	MaxWait          time.Duration // max wait between retries (ex: 10s)
	PingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	PoolSize         int           // Redis connection pool size
	ConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	WarnThreshold    int           // warn after this many attempts
}

// ServerConfig configures the snapshot server.
type ServerConfig struct {
	Common

	ListenPort      string        // ex: ":8080"
	JWTSecret       string        // HS256 secret for bearer tokens
	Store           string        // "redis" | "memory"
	VersionHistory  int           // version-history entries kept per account
	GCInterval      time.Duration // interval of the tombstone garbage collector (default: 24h)
	TombstoneMaxAge time.Duration // tombstones older than this are pruned (default: 30 days)
	RequestTimeout  time.Duration // per-request timeout

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict probes to specific IPs (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	RateBurst    int      // per-account burst, 0 disables rate limiting
	RatePerMin   int      // per-account refill per minute
}

// AgentConfig configures one sync agent.
type AgentConfig struct {
	Common

	RemoteURL   string        // snapshot server base URL, empty = source not connected
	Token       string        // bearer token minted by `marksync token`
	SourceID    string        // sync source identifier
	DeviceName  string        // recorded in version history
	HTTPTimeout time.Duration // per-call timeout against the remote

	TreeFile     string // YAML bookmark tree watched by the agent, empty = in-memory tree
	TreeFlavor   string // root-container naming: chrome | firefox | edge | opera
	StateBackend string // "file" | "redis"
	StateFile    string // sync state path for the file backend

	SyncInterval    time.Duration // periodic sync interval
	Debounce        time.Duration // quiet period after local edits before syncing
	MaxFailures     int           // consecutive failures that open the circuit breaker
	TombstoneMaxAge time.Duration // local tombstone retention

	ControlAddr    string        // local control API, empty = disabled
	ControlTimeout time.Duration // upper bound for a control command
	AllowedCIDRS   []string      // callers allowed on the control API

	HomepageBookmarks string        // Homepage bookmarks.yaml to import, empty = disabled
	ImportInterval    time.Duration // interval between imports
}

// LoadServer reads the server configuration from the environment and an optional .env file.
func LoadServer() *ServerConfig {
	loadDotEnv()

	cfg := &ServerConfig{
		Common: loadCommon(),

		ListenPort:      getenv("MARKSYNC_LISTEN_PORT", ":8080"),
		JWTSecret:       requireEnv("MARKSYNC_JWT_SECRET"),
		Store:           strings.ToLower(getenv("MARKSYNC_STORE", "redis")),
		VersionHistory:  getenvInt("MARKSYNC_VERSION_HISTORY", 50),
		GCInterval:      mustDuration("MARKSYNC_GC_INTERVAL", 24*time.Hour),
		TombstoneMaxAge: mustDuration("MARKSYNC_TOMBSTONE_MAX_AGE", 30*24*time.Hour),
		RequestTimeout:  mustDuration("MARKSYNC_REQUEST_TIMEOUT", 30*time.Second),

		// Access restrictions
		AllowedHosts: parseAllowedIPs(getenv("MARKSYNC_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("MARKSYNC_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("MARKSYNC_TRUST_PROXY", false),
		RateBurst:    getenvInt("MARKSYNC_RATE_BURST", 60),
		RatePerMin:   getenvInt("MARKSYNC_RATE_PER_MIN", 60),
	}

	switch cfg.Store {
	case "redis":
		cfg.Redis = loadRedis(true)
	case "memory":
	default:
		panic(fmt.Sprintf("❌ FATAL: MARKSYNC_STORE must be redis or memory, got %q", cfg.Store))
	}
	if cfg.VersionHistory < 1 {
		panic("❌ FATAL: MARKSYNC_VERSION_HISTORY must be >= 1")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.JWTSecret = redacted
		cfgCopy.Redis = cfg.Redis.redact()
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// LoadAgent reads the agent configuration from the environment and an optional .env file.
func LoadAgent() *AgentConfig {
	loadDotEnv()

	host, _ := os.Hostname()
	cfg := &AgentConfig{
		Common: loadCommon(),

		RemoteURL:   strings.TrimRight(getenv("MARKSYNC_REMOTE_URL", ""), "/"),
		Token:       getenv("MARKSYNC_TOKEN", ""),
		SourceID:    getenv("MARKSYNC_SOURCE_ID", "default"),
		DeviceName:  getenv("MARKSYNC_DEVICE_NAME", host),
		HTTPTimeout: mustDuration("MARKSYNC_HTTP_TIMEOUT", 15*time.Second),

		TreeFile:     getenv("MARKSYNC_TREE_FILE", ""),
		TreeFlavor:   getenv("MARKSYNC_TREE_FLAVOR", "chrome"),
		StateBackend: strings.ToLower(getenv("MARKSYNC_STATE_BACKEND", "file")),
		StateFile:    getenv("MARKSYNC_STATE_FILE", "marksync-state.json"),

		SyncInterval:    mustDuration("MARKSYNC_SYNC_INTERVAL", 5*time.Minute),
		Debounce:        mustDuration("MARKSYNC_DEBOUNCE", 2*time.Second),
		MaxFailures:     getenvInt("MARKSYNC_MAX_FAILURES", 5),
		TombstoneMaxAge: mustDuration("MARKSYNC_TOMBSTONE_MAX_AGE", 30*24*time.Hour),

		ControlAddr:    getenv("MARKSYNC_CONTROL_ADDR", "127.0.0.1:7878"),
		ControlTimeout: mustDuration("MARKSYNC_CONTROL_TIMEOUT", 5*time.Minute),
		AllowedCIDRS:   parseAllowedIPs(getenv("MARKSYNC_ALLOWED_CIDRS", "127.0.0.1/32, ::1/128")),

		HomepageBookmarks: getenv("MARKSYNC_HOMEPAGE_BOOKMARKS", ""),
		ImportInterval:    mustDuration("MARKSYNC_IMPORT_INTERVAL", time.Hour),
	}

	switch cfg.StateBackend {
	case "redis":
		cfg.Redis = loadRedis(true)
	case "file":
	default:
		panic(fmt.Sprintf("❌ FATAL: MARKSYNC_STATE_BACKEND must be file or redis, got %q", cfg.StateBackend))
	}
	if cfg.SyncInterval <= 0 {
		panic("❌ FATAL: MARKSYNC_SYNC_INTERVAL must be > 0")
	}

	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfgCopy.Token != "" {
			cfgCopy.Token = redacted
		}
		cfgCopy.Redis = cfg.Redis.redact()
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// LoadTokenSecret returns the server's JWT signing secret for minting tokens.
func LoadTokenSecret() string {
	loadDotEnv()
	return requireEnv("MARKSYNC_JWT_SECRET")
}

func loadCommon() Common {
	return Common{
		ShutdownTimeout: mustDuration("MARKSYNC_SHUTDOWN_TIMEOUT", 5*time.Second),
		LogLevel:        getenv("MARKSYNC_LOG_LEVEL", "info"),
		PrettyLog:       mustBool("MARKSYNC_PRETTY_LOG", true),
		LogFile:         getenv("MARKSYNC_LOG_FILE", ""),
		LogMaxSizeMB:    getenvInt("MARKSYNC_LOG_MAX_SIZE_MB", 10),
		LogMaxBackups:   getenvInt("MARKSYNC_LOG_MAX_BACKUPS", 3),
	}
}

func loadRedis(required bool) Redis {
	addr := getenv("MARKSYNC_REDIS_ADDR", "")
	if required && addr == "" {
		addr = requireEnv("MARKSYNC_REDIS_ADDR")
	}
	r := Redis{
		Addr:             addr,
		User:             getenv("MARKSYNC_REDIS_USERNAME", "default"),
		PasswordRequired: mustBool("MARKSYNC_REDIS_PASSWORD_REQUIRED", true),
		Password:         getenv("MARKSYNC_REDIS_PASSWORD", ""),
		DB:               getenvInt("MARKSYNC_REDIS_DB", 0),
		DialTimeout:      mustDuration("MARKSYNC_REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:      mustDuration("MARKSYNC_REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout:     mustDuration("MARKSYNC_REDIS_WRITE_TIMEOUT", 3*time.Second),
		MaxWait:          mustDuration("MARKSYNC_REDIS_MAX_WAIT", 10*time.Second),
		PingTimeout:      mustDuration("MARKSYNC_REDIS_PING_TIMEOUT", 5*time.Second),
		PoolSize:         getenvInt("MARKSYNC_REDIS_POOL_SIZE", 10),
		ConnectTimeout:   mustDuration("MARKSYNC_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RetryInterval:    mustDuration("MARKSYNC_REDIS_RETRY_INTERVAL", 2*time.Second),
		WarnThreshold:    getenvInt("MARKSYNC_REDIS_WARN_THRESHOLD", 3),
	}

	// Validate Redis password configuration
	if r.PasswordRequired && r.Password == "" {
		panic("❌ FATAL: MARKSYNC_REDIS_PASSWORD is required when MARKSYNC_REDIS_PASSWORD_REQUIRED=true")
	}
	return r
}

func (r Redis) redact() Redis {
	if r.Password != "" {
		r.Password = redacted
	}
	if r.User != "" {
		r.User = redacted
	}
	return r
}

// loadDotEnv loads .env (or MARKSYNC_ENV_FILE) without overriding variables
// already set. A missing file is not an error.
func loadDotEnv() {
	path := getenv("MARKSYNC_ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Sprintf("❌ FATAL: failed to load %s: %v", path, err))
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
