package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toppy_errors_total",
		Help: "Error responses by code and HTTP status",
	}, []string{"error_code", "http_status"})

	PanicsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "toppy_panics_total",
		Help: "Recovered panics",
	})

	ErrorsByEndpoint = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toppy_errors_by_endpoint",
		Help: "Error responses by endpoint",
	}, []string{"endpoint", "error_code"})
)

// RecordError records an error with code and status
func RecordError(errorCode string, httpStatus int) {
	ErrorsTotal.WithLabelValues(errorCode, strconv.Itoa(httpStatus)).Inc()
}

// RecordPanic records a panic recovery
func RecordPanic() {
	PanicsTotal.Inc()
}

// RecordErrorByEndpoint records an error by endpoint
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	ErrorsByEndpoint.WithLabelValues(endpoint, errorCode).Inc()
}
