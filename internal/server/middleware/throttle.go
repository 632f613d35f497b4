package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/time/rate"

	"github.com/TheMaster3558/toppy/internal/metrics"
)

// Throttle caps inbound webhook deliveries with a shared token bucket.
// A non-positive limit disables the check.
func Throttle(limit float64, burst int) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(limit), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reservation := limiter.Reserve()
			delay := reservation.Delay()
			if delay == 0 {
				next.ServeHTTP(w, r)
				return
			}
			reservation.Cancel()

			envelope := errors.NewErrorEnvelope("RATE_LIMITED", "too many webhook deliveries").
				WithCorrelationID(GetRequestID(r.Context())).
				WithDetails(map[string]interface{}{"retry_after_seconds": retryAfterSeconds(delay)})
			metrics.RecordError(envelope.Code, http.StatusTooManyRequests)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(delay)))
			writeErrorResponse(w, envelope, http.StatusTooManyRequests)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
