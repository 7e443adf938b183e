package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/utils"
)

// RateLimitConfig tunes the per-caller token bucket.
type RateLimitConfig struct {
	Burst        int           // bucket capacity
	RefillPerMin int           // tokens regained per minute
	MaxEntries   int           // idle buckets are swept early past this size
	IdleTTL      time.Duration // buckets unused this long are dropped
	TrustProxy   bool          // resolve the client IP from proxy headers
	Now          func() time.Time
	Logger       logger.Logger
}

type bucket struct {
	tokens float64
	last   time.Time
}

type limiter struct {
	cfg       RateLimitConfig
	perSecond float64

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	cfg.Burst = max(cfg.Burst, 1)
	cfg.RefillPerMin = max(cfg.RefillPerMin, 1)
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &limiter{
		cfg:       cfg,
		perSecond: float64(cfg.RefillPerMin) / 60,
		buckets:   make(map[string]*bucket),
		lastSweep: cfg.Now(),
	}
}

// take spends one token of key's bucket. When the bucket is empty it returns
// how many whole seconds until the next token.
func (l *limiter) take(key string) (remaining int, retryAfter int) {
	now := l.cfg.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.cfg.IdleTTL ||
		(l.cfg.MaxEntries > 0 && len(l.buckets) >= l.cfg.MaxEntries) {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.cfg.Burst), last: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(l.cfg.Burst), b.tokens+elapsed*l.perSecond)
	}
	b.last = now

	if b.tokens < 1 {
		return 0, max(int(math.Ceil((1-b.tokens)/l.perSecond)), 1)
	}
	b.tokens--
	return int(b.tokens), 0
}

// sweepLocked drops buckets that have been full long enough to be forgotten.
func (l *limiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.last) > l.cfg.IdleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// RateLimit throttles callers with a token bucket per account. Devices of the
// same account share a bucket. Requests without an account fall back to one
// bucket per client IP. Mount it after Auth.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := Account(r.Context())
			if key == "" {
				key = "ip:" + utils.ClientIP(r, l.cfg.TrustProxy)
			}

			remaining, retryAfter := l.take(key)
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if retryAfter > 0 {
				if l.cfg.Logger != nil {
					l.cfg.Logger.Debug("rate limited", logger.String("key", key), logger.Int("retry_after", retryAfter))
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				respond.Error(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
