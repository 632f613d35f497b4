package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/core"
	apperrors "github.com/TheMaster3558/toppy/internal/errors"
)

type recordingHost struct {
	mu     sync.Mutex
	events []core.Event
}

func (h *recordingHost) WaitUntilReady(context.Context) error { return nil }
func (h *recordingHost) IsClosed() bool                       { return false }
func (h *recordingHost) BotID() (uint64, error)               { return 1, nil }
func (h *recordingHost) Stats() core.StatsSnapshot            { return core.StatsSnapshot{} }

func (h *recordingHost) Dispatch(event core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *recordingHost) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Health:  config.HealthConfig{Enabled: true},
		Metrics: config.MetricsConfig{Enabled: true},
		Webhook: config.WebhookConfig{
			Enabled:       true,
			Secrets:       map[string]string{"topgg": "s3cret"},
			ThrottleRate:  100,
			ThrottleBurst: 100,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *recordingHost) {
	t.Helper()
	host := &recordingHost{}
	srv, err := New(Options{Config: cfg, Host: host, Version: "test"})
	require.NoError(t, err)
	return srv, host
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topgg", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerRoutesWebhooks(t *testing.T) {
	srv, host := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/topgg", strings.NewReader(`{"bot":"1","user":"2","type":"upvote"}`))
	req.Header.Set("Authorization", "s3cret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "toppy", rec.Body.String())
	assert.Equal(t, 1, host.count())

	req = httptest.NewRequest(http.MethodPost, "/topgg", strings.NewReader(`{"bot":"1","user":"2"}`))
	req.Header.Set("Authorization", "nope")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, host.count())
}

func TestServerOperationalEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	for _, path := range []string{"/health", "/health/ready", "/version", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "toppy_http_requests_total")
}

func TestServerDisabledEndpoints(t *testing.T) {
	cfg := testConfig()
	cfg.Health.Enabled = false
	cfg.Metrics.Enabled = false
	srv, _ := newTestServer(t, cfg)

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestServerRequiresConfig(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestServerServeAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/health/live"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-done)
}
