package botlist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/engine"
)

const (
	// MaxRetryAfter is the longest 429 wait that is slept out instead of returned.
	MaxRetryAfter = 60 * time.Second

	// DefaultMaxRetries is the number of transparent 429 retries per call.
	DefaultMaxRetries = 1

	maxResponseBytes = 4 << 20
	maxLoggedBody    = 512
)

// Options configures a site client.
type Options struct {
	Client     *http.Client
	BaseURL    string
	Logger     *zap.Logger
	UserAgent  string
	MaxRetries int
	Limits     map[string]int
	Margin     float64
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	JSON   any
}

// Requester is the request core shared by every site client: rate limiting,
// authentication, status mapping and 429 retries.
type Requester struct {
	Site       core.Site
	Token      string
	BaseURL    string
	Client     *http.Client
	Router     *engine.Router
	Logger     *zap.Logger
	UserAgent  string
	MaxRetries int
	Sleep      func(ctx context.Context, d time.Duration) error
	OnRetry    func(site core.Site, wait time.Duration)
}

func newRequester(site core.Site, token, defaultBaseURL string, patterns []string, limits map[string]engine.RateLimit, opts Options) Requester {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	router := engine.NewRouter(patterns, limits)
	router.ApplyOverrides(opts.Limits)
	router.ApplySafetyMargin(opts.Margin)

	return Requester{
		Site:       site,
		Token:      strings.TrimSpace(token),
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Client:     opts.Client,
		Router:     router,
		Logger:     logger.With(zap.String("site", string(site))),
		UserAgent:  opts.UserAgent,
		MaxRetries: opts.MaxRetries,
	}
}

// Do performs the request and returns the response body for 2xx statuses.
// A 429 with a retry-after of at most MaxRetryAfter is slept out and retried
// up to MaxRetries times; anything else surfaces as a typed error.
func (r *Requester) Do(ctx context.Context, req Request) ([]byte, error) {
	if r == nil {
		return nil, errors.New("requester is not configured")
	}
	if r.Token == "" {
		return nil, fmt.Errorf("%s: %w", r.Site, core.ErrNoTokenSet)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	retries := r.MaxRetries
	if retries == 0 {
		retries = DefaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		body, err := r.do(ctx, req)

		var limited *core.RateLimitedError
		if !errors.As(err, &limited) || limited.RetryAfter > MaxRetryAfter || attempt >= retries {
			return body, err
		}

		r.logger().Info("Rate limited, retrying",
			zap.String("path", req.Path),
			zap.Duration("retry_after", limited.RetryAfter),
			zap.Int("attempt", attempt+1))
		if r.OnRetry != nil {
			r.OnRetry(r.Site, limited.RetryAfter)
		}
		if err := r.sleep(ctx, limited.RetryAfter); err != nil {
			return nil, err
		}
	}
}

// DoJSON performs the request and decodes the JSON response into out.
func (r *Requester) DoJSON(ctx context.Context, req Request, out any) error {
	body, err := r.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.Site, err)
	}
	return nil
}

func (r *Requester) do(ctx context.Context, req Request) ([]byte, error) {
	if err := r.Router.Wait(ctx, req.Path); err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	endpoint := r.BaseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var (
		payload     []byte
		contentType string
	)
	switch {
	case req.Form != nil:
		payload = []byte(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.JSON != nil:
		encoded, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", r.Site, err)
		}
		payload = encoded
		contentType = "application/json"
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", r.Token)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if r.UserAgent != "" {
		httpReq.Header.Set("User-Agent", r.UserAgent)
	}

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", r.Site, err)
	}

	r.logger().Debug("Bot list request",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.ByteString("payload", payload),
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncate(body, maxLoggedBody)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	httpErr := core.HTTPError{
		Method:     method,
		URL:        endpoint,
		StatusCode: resp.StatusCode,
		Body:       truncate(body, maxLoggedBody),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &core.RateLimitedError{HTTPError: httpErr, RetryAfter: retryAfter(resp, body)}
	}
	return nil, &httpErr
}

func (r *Requester) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return engine.SleepContext(ctx, d)
}

func (r *Requester) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// retryAfter reads the wait from the JSON body, falling back to the header.
func retryAfter(resp *http.Response, body []byte) time.Duration {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"retry-after", "retry_after", "retryAfter"} {
			raw, ok := payload[key]
			if !ok {
				continue
			}
			var seconds float64
			if err := json.Unmarshal(raw, &seconds); err == nil {
				return secondsDuration(seconds)
			}
		}
	}
	return retryAfterHeader(resp)
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if retry == "" {
		return 0
	}

	if seconds, err := strconv.ParseFloat(retry, 64); err == nil {
		return secondsDuration(seconds)
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		if wait := time.Until(parsed); wait > 0 {
			return wait
		}
	}
	return 0
}

func secondsDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
