package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// ErrUnauthorized matches HTTP errors caused by a missing or rejected credential.
var ErrUnauthorized = errors.New("remote rejected credentials")

// Client is the remote snapshot store as seen by the agent.
type Client interface {
	Fetch(ctx context.Context) (*domain.Snapshot, error)
	Push(ctx context.Context, req domain.PushRequest) (*domain.PushResponse, error)
	SaveVersion(ctx context.Context, req domain.VersionRequest) error
}

// HTTPError is a non-2xx answer from the remote.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 and 403 answers.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// HTTPClient talks to the snapshot server over HTTP with bearer auth and
// bounded retries on network errors, 429 and 5xx.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option tweaks an HTTPClient.
type Option func(*HTTPClient)

// WithRetries sets the retry budget and backoff bounds.
func WithRetries(maxRetries int, baseDelay, maxDelay time.Duration) Option {
	return func(c *HTTPClient) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
		c.maxDelay = maxDelay
	}
}

// NewHTTPClient builds a client for baseURL. A nil httpClient uses a 15s timeout.
func NewHTTPClient(baseURL, token string, httpClient *http.Client, opts ...Option) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	c := &HTTPClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads the current snapshot.
func (c *HTTPClient) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := c.doJSON(ctx, http.MethodGet, "/bookmarks", nil, &snap, true); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Push uploads the merged item list and tombstones.
func (c *HTTPClient) Push(ctx context.Context, req domain.PushRequest) (*domain.PushResponse, error) {
	if req.Items == nil {
		req.Items = []domain.Item{}
	}
	if req.Tombstones == nil {
		req.Tombstones = []domain.Tombstone{}
	}
	var resp domain.PushResponse
	if err := c.doJSON(ctx, http.MethodPost, "/bookmarks", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveVersion appends a version-history entry. An append is not idempotent,
// so only a 429, which the server answers before doing any work, is retried.
func (c *HTTPClient) SaveVersion(ctx context.Context, req domain.VersionRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/versions", req, nil, false)
}

// doJSON sends one JSON request. Rate limiting is always retried within the
// budget; network errors and 5xx only when idempotent is set.
func (c *HTTPClient) doJSON(ctx context.Context, method, requestPath string, body, out any, idempotent bool) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("X-Correlation-Id", uuid.NewString())
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if idempotent && attempt < c.maxRetries && ctx.Err() == nil {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			if err := json.Unmarshal(payload, out); err != nil {
				return fmt.Errorf("failed to decode %s %s response: %w", method, requestPath, err)
			}
			return nil
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || (idempotent && resp.StatusCode >= 500)
		if retryable && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payload, &errPayload)
		if errPayload.Message == "" {
			errPayload.Message = strings.TrimSpace(string(payload))
		}
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Code:       errPayload.Code,
			Message:    errPayload.Message,
		}
	}
}

func (c *HTTPClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	maxDelay := c.maxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > maxDelay {
			return maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		return time.Until(at)
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
