package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlClientReturnsResultBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sync", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"op":"sync","success":false,"error":"sync already in progress"}`))
	}))
	defer srv.Close()

	c := NewControlClient(strings.TrimPrefix(srv.URL, "http://"), time.Second)
	status, body, err := c.Call(context.Background(), http.MethodPost, "/sync")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, status)
	assert.JSONEq(t, `{"op":"sync","success":false,"error":"sync already in progress"}`, string(body))
}

func TestControlClientRejectsNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := NewControlClient(srv.URL+"/", time.Second).Call(context.Background(), http.MethodGet, "/status")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestControlClientUnreachable(t *testing.T) {
	_, _, err := NewControlClient("127.0.0.1:1", 200*time.Millisecond).Call(context.Background(), http.MethodGet, "/status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}
