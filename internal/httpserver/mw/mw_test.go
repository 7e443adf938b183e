package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/auth"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host    string
		pattern string
		want    bool
	}{
		{"sync.example.com", "sync.example.com", true},
		{"sync.example.com", "*.example.com", true},
		{"a.b.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"badexample.com", "*.example.com", false},
		{"other.com", "sync.example.com", false},
		{"sync.example.com", "sync.example.com:443", true},
	}
	for _, tt := range tests {
		if got := matchHost(tt.host, tt.pattern); got != tt.want {
			t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.want)
		}
	}
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"Sync.Example.com", "*.lan"}, logger.New("error", false))(okHandler)

	tests := []struct {
		host string
		want int
	}{
		{"sync.example.com", http.StatusOK},
		{"SYNC.example.com:8443", http.StatusOK},
		{"nas.lan", http.StatusOK},
		{"evil.com", http.StatusForbidden},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/bookmarks", nil)
		r.Host = tt.host
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code != tt.want {
			t.Errorf("host %q: status = %d, want %d", tt.host, rec.Code, tt.want)
		}
	}
}

func TestEnforceHostPassthrough(t *testing.T) {
	h := EnforceHost(nil, logger.New("error", false))(okHandler)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Host = "anything"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAllowOnlyCIDRS(t *testing.T) {
	log := logger.New("error", false)
	tests := []struct {
		name       string
		allowed    []string
		remoteAddr string
		xff        string
		trustProxy bool
		want       int
	}{
		{"loopback allowed", []string{"127.0.0.1/32"}, "127.0.0.1:1", "", false, http.StatusOK},
		{"outsider rejected", []string{"127.0.0.1/32"}, "10.0.0.9:1", "", false, http.StatusForbidden},
		{"proxy header trusted", []string{"192.168.0.0/16"}, "127.0.0.1:1", "192.168.1.20", true, http.StatusOK},
		{"proxy header ignored", []string{"192.168.0.0/16"}, "127.0.0.1:1", "192.168.1.20", false, http.StatusForbidden},
		{"empty list passthrough", nil, "8.8.8.8:1", "", false, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AllowOnlyCIDRS(tt.allowed, tt.trustProxy, log)(okHandler)
			r := httptest.NewRequest(http.MethodPost, "/sync", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuth(t *testing.T) {
	const secret = "s3cret"
	good, err := auth.GenerateToken("alice", "laptop", time.Hour, secret)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	forged, err := auth.GenerateToken("alice", "laptop", time.Hour, "other")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	var gotAccount, gotDevice string
	h := Auth(secret, logger.New("error", false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount, gotDevice = Account(r.Context()), Device(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + good, http.StatusOK},
		{"lowercase scheme", "bearer " + good, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + good, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotAccount, gotDevice = "", ""
			r := httptest.NewRequest(http.MethodGet, "/bookmarks", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && (gotAccount != "alice" || gotDevice != "laptop") {
				t.Errorf("claims = %q/%q, want alice/laptop", gotAccount, gotDevice)
			}
		})
	}
}

func TestRateLimitRefills(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	h := RateLimit(RateLimitConfig{
		Burst:        1,
		RefillPerMin: 60,
		Now:          func() time.Time { return now },
	})(okHandler)

	call := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/bookmarks", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	if rec := call(); rec.Code != http.StatusOK {
		t.Fatalf("first call status = %d, want 200", rec.Code)
	}
	rec := call()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second call status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}

	now = now.Add(time.Second)
	if rec := call(); rec.Code != http.StatusOK {
		t.Errorf("after refill status = %d, want 200", rec.Code)
	}
}

func TestLimiterSweepsIdleBuckets(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newLimiter(RateLimitConfig{Burst: 5, RefillPerMin: 60, IdleTTL: time.Minute, Now: func() time.Time { return now }})
	l.take("a")
	l.take("b")

	now = now.Add(2 * time.Minute)
	l.take("c")

	if _, ok := l.buckets["a"]; ok {
		t.Error("idle bucket a should have been swept")
	}
	if _, ok := l.buckets["c"]; !ok {
		t.Error("bucket c should exist")
	}
}
