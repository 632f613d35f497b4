package engine

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"
)

// RateLimit represents a rate limit window.
type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// RateLimiter lets at most RequestsPerWindow calls through per window.
type RateLimiter struct {
	Limit  RateLimit
	Clock  func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error
	OnWait func(wait time.Duration)
	Margin float64

	mu        sync.Mutex
	count     int
	lastReset time.Time
}

// NewRateLimiter returns a limiter allowing rate calls per window.
func NewRateLimiter(rate int, per time.Duration) *RateLimiter {
	return &RateLimiter{Limit: RateLimit{RequestsPerWindow: rate, WindowDuration: per}}
}

// Wait blocks until a call fits inside the current window, then counts it.
// The slot is reserved under the lock and re-checked after every sleep, so
// concurrent callers at a window boundary cannot overshoot the limit.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		r.mu.Lock()
		limit := r.applyMargin(r.Limit)
		now := r.now()
		if r.lastReset.IsZero() || now.Sub(r.lastReset) > limit.WindowDuration {
			r.count = 0
			r.lastReset = now
		}

		if limit.RequestsPerWindow <= 0 || r.count < limit.RequestsPerWindow {
			r.count++
			r.mu.Unlock()
			return nil
		}

		wait := r.lastReset.Add(limit.WindowDuration).Sub(now)
		r.mu.Unlock()

		// The window only resets strictly after it elapses.
		if wait <= 0 {
			wait = time.Millisecond
		}
		if r.OnWait != nil {
			r.OnWait(wait)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Count returns the number of calls let through in the current window.
func (r *RateLimiter) Count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// ApplySafetyMargin adjusts the effective request limit by a ratio (0-1].
func (r *RateLimiter) ApplySafetyMargin(margin float64) {
	if r == nil {
		return
	}
	if margin <= 0 || margin > 1 {
		return
	}
	r.mu.Lock()
	r.Margin = margin
	r.mu.Unlock()
}

func (r *RateLimiter) applyMargin(limit RateLimit) RateLimit {
	if r.Margin <= 0 || r.Margin > 1 {
		return limit
	}
	adjusted := int(math.Floor(float64(limit.RequestsPerWindow) * r.Margin))
	if adjusted < 1 {
		adjusted = 1
	}
	limit.RequestsPerWindow = adjusted
	return limit
}

func (r *RateLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func (r *RateLimiter) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext sleeps for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Route binds a path prefix to a limiter.
type Route struct {
	Pattern string
	Limiter *RateLimiter
}

// Router picks the limiter for a request path. Routes are checked in order
// and the first matching prefix wins; later routes are not consulted.
type Router struct {
	Routes []Route
}

// NewRouter builds a router from ordered pattern limits.
func NewRouter(patterns []string, limits map[string]RateLimit) *Router {
	router := &Router{Routes: make([]Route, 0, len(patterns))}
	for _, pattern := range patterns {
		limit, ok := limits[pattern]
		if !ok {
			continue
		}
		router.Routes = append(router.Routes, Route{
			Pattern: pattern,
			Limiter: &RateLimiter{Limit: limit},
		})
	}
	return router
}

// Limiter returns the limiter for path, or nil when no route matches.
func (r *Router) Limiter(path string) *RateLimiter {
	if r == nil {
		return nil
	}
	for _, route := range r.Routes {
		if strings.HasPrefix(path, route.Pattern) {
			return route.Limiter
		}
	}
	return nil
}

// Wait blocks on the limiter matching path.
func (r *Router) Wait(ctx context.Context, path string) error {
	return r.Limiter(path).Wait(ctx)
}

// ApplyOverrides replaces requests-per-window for the named patterns.
func (r *Router) ApplyOverrides(overrides map[string]int) {
	if r == nil || len(overrides) == 0 {
		return
	}

	for pattern, value := range overrides {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || value <= 0 {
			continue
		}
		for _, route := range r.Routes {
			if route.Pattern == pattern {
				route.Limiter.mu.Lock()
				route.Limiter.Limit.RequestsPerWindow = value
				route.Limiter.mu.Unlock()
			}
		}
	}
}

// ApplySafetyMargin applies margin to every route.
func (r *Router) ApplySafetyMargin(margin float64) {
	if r == nil {
		return
	}
	for _, route := range r.Routes {
		route.Limiter.ApplySafetyMargin(margin)
	}
}

// Instrument installs clock, sleeper and wait hook on every route.
func (r *Router) Instrument(clock func() time.Time, sleep func(context.Context, time.Duration) error, onWait func(string, time.Duration)) {
	if r == nil {
		return
	}
	for _, route := range r.Routes {
		pattern := route.Pattern
		if clock != nil {
			route.Limiter.Clock = clock
		}
		if sleep != nil {
			route.Limiter.Sleep = sleep
		}
		if onWait != nil {
			route.Limiter.OnWait = func(wait time.Duration) { onWait(pattern, wait) }
		}
	}
}
