package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every toppy collector. A private registry keeps the host
// application's default registry untouched.
var Registry = prometheus.NewRegistry()

// Application-level metrics following Prometheus conventions
var (
	PostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toppy_posts_total",
		Help: "Stats posts by site and outcome",
	}, []string{"site", "outcome"})

	VotesReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toppy_votes_received_total",
		Help: "Vote webhook deliveries accepted, by site",
	}, []string{"site"})

	RateLimitWaitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toppy_ratelimit_waits_total",
		Help: "Outbound requests delayed by the client-side rate limiter",
	}, []string{"site", "route"})

	RateLimitWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "toppy_ratelimit_wait_seconds",
		Help:    "Time spent waiting on the client-side rate limiter",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
	}, []string{"site"})

	HTTPRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toppy_http_retries_total",
		Help: "Outbound requests retried after a 429",
	}, []string{"site"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toppy_http_requests_total",
		Help: "Inbound HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "toppy_http_request_duration_seconds",
		Help:    "Inbound HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ServerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "toppy_server_start_time_seconds",
		Help: "Unix time the webhook server started",
	})
)

func init() {
	Registry.MustRegister(
		PostsTotal,
		VotesReceivedTotal,
		RateLimitWaitsTotal,
		RateLimitWaitSeconds,
		HTTPRetriesTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ServerStartTime,
		ErrorsTotal,
		PanicsTotal,
		ErrorsByEndpoint,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// RecordPost records one stats post outcome.
func RecordPost(site string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	PostsTotal.WithLabelValues(site, outcome).Inc()
}

// RecordVote records an accepted vote delivery.
func RecordVote(site string) {
	VotesReceivedTotal.WithLabelValues(site).Inc()
}

// RecordRateLimitWait records a limiter delay.
func RecordRateLimitWait(site, route string, wait time.Duration) {
	RateLimitWaitsTotal.WithLabelValues(site, route).Inc()
	RateLimitWaitSeconds.WithLabelValues(site).Observe(wait.Seconds())
}

// RecordRetry records a transparent 429 retry.
func RecordRetry(site string) {
	HTTPRetriesTotal.WithLabelValues(site).Inc()
}

// RecordHTTPRequest records an inbound request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	ServerStartTime.Set(float64(timestamp))
}
