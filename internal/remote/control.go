package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ControlClient drives a running agent through its local control API.
type ControlClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewControlClient builds a client for addr, a host:port or a full URL.
func NewControlClient(addr string, timeout time.Duration) *ControlClient {
	base := strings.TrimRight(strings.TrimSpace(addr), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &ControlClient{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Call sends one control command and returns the raw JSON answer. Answers
// with a status the agent uses for command outcomes (409, 401, 502) are not
// errors: the body carries the result.
func (c *ControlClient) Call(ctx context.Context, method, path string) (int, json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("agent control API unreachable at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	payload = bytes.TrimSpace(payload)
	if !json.Valid(payload) {
		return resp.StatusCode, nil, &HTTPError{StatusCode: resp.StatusCode, Message: string(payload)}
	}
	return resp.StatusCode, payload, nil
}
