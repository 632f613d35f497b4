package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordPost(t *testing.T) {
	before := testutil.ToFloat64(PostsTotal.WithLabelValues("topgg", "failure"))
	RecordPost("topgg", errors.New("boom"))
	require.Equal(t, before+1, testutil.ToFloat64(PostsTotal.WithLabelValues("topgg", "failure")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordVote("dbl")
	RecordRateLimitWait("topgg", "/bots", 2*time.Second)
	RecordHTTPRequest(http.MethodPost, "/dbl", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `toppy_votes_received_total{site="dbl"}`)
	require.Contains(t, body, `toppy_ratelimit_waits_total{route="/bots",site="topgg"}`)
	require.Contains(t, body, "toppy_http_request_duration_seconds")
}
