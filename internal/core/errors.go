package core

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrClientNotReady is returned when the host has neither an application id nor a user id yet.
	ErrClientNotReady = errors.New("client is not ready: bot id unavailable")

	ErrNoTokenSet                = errors.New("no bot list token set")
	ErrMissingOptionalDependency = errors.New("missing optional dependency")
	ErrVoteNotFound              = errors.New("vote not found")
	ErrSchedulerRunning          = errors.New("scheduler is already running")
)

// HTTPError reports a non-2xx response from a bot list API.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Unwrap exposes the status sentinel so callers can use errors.Is.
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	default:
		return nil
	}
}

// RateLimitedError is returned for a 429 whose retry-after is too long to wait out.
type RateLimitedError struct {
	HTTPError
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s %s: rate limited, retry after %s", e.Method, e.URL, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error {
	return &e.HTTPError
}
