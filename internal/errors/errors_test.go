package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/TheMaster3558/toppy/internal/server/middleware"
)

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		"INVALID_INPUT":       http.StatusBadRequest,
		"UNAUTHORIZED":        http.StatusUnauthorized,
		"NOT_FOUND":           http.StatusNotFound,
		"METHOD_NOT_ALLOWED":  http.StatusMethodNotAllowed,
		"RATE_LIMITED":        http.StatusTooManyRequests,
		"SERVICE_UNAVAILABLE": http.StatusServiceUnavailable,
		"VOTE_CACHE_ERROR":    http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, HTTPStatusFromCode(code), code)
	}
}

func TestEnsureEnvelopeWrapsPlainErrors(t *testing.T) {
	env := EnsureEnvelope(stderrors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", env.Code)
	assert.Equal(t, "boom", env.Context["wrapped_error"])

	original := NewUnauthorizedError("nope")
	assert.Same(t, original, EnsureEnvelope(original))
}

func TestWrapInvalidInputCarriesCause(t *testing.T) {
	env := WrapInvalidInput(context.Background(), stderrors.New("bad json"), "invalid webhook body")
	assert.Equal(t, "INVALID_INPUT", env.Code)
	assert.NotEmpty(t, env.CorrelationID)
	assert.Equal(t, "bad json", ResponseDetails(env)["wrapped_error"])
}

func TestRespondWithEnvelopeUsesRequestID(t *testing.T) {
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondWithEnvelope(w, r, WrapUnauthorized(r.Context(), "topgg", "invalid webhook authorization"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/topgg", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
	assert.Equal(t, "req-1", body.Error.RequestID)
	assert.Equal(t, "topgg", body.Error.Details["site"])
}

func TestWrapVoteCacheCarriesSiteAndCause(t *testing.T) {
	ctx := context.WithValue(context.Background(), chimw.RequestIDKey, "req-7")
	env := WrapVoteCache(ctx, "dbl", stderrors.New("disk full"))

	assert.Equal(t, "VOTE_CACHE_ERROR", env.Code)
	assert.Equal(t, gferrors.SeverityMedium, env.Severity)
	assert.Equal(t, "req-7", env.CorrelationID)

	details := ResponseDetails(env)
	assert.Equal(t, "dbl", details["site"])
	assert.Equal(t, "disk full", details["wrapped_error"])
}

func TestWrapUnauthorizedUsesUnauthorizedCode(t *testing.T) {
	env := WrapUnauthorized(context.Background(), "dbgg", "invalid webhook authorization")
	assert.Equal(t, NewUnauthorizedError("x").Code, env.Code)
	assert.Equal(t, http.StatusUnauthorized, HTTPStatusFromEnvelope(env))
}
