package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiterWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := &RateLimiter{
		Limit: RateLimit{RequestsPerWindow: 3, WindowDuration: time.Second},
		Clock: clock.Now,
		Sleep: clock.Sleep,
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
	require.Empty(t, clock.sleeps)
	require.Equal(t, 3, limiter.Count())

	require.NoError(t, limiter.Wait(context.Background()))
	require.NotEmpty(t, clock.sleeps)
	require.Equal(t, time.Second, clock.sleeps[0])
	require.Equal(t, 1, limiter.Count())
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := &RateLimiter{
		Limit: RateLimit{RequestsPerWindow: 1, WindowDuration: time.Minute},
		Clock: clock.Now,
		Sleep: clock.Sleep,
	}

	require.NoError(t, limiter.Wait(context.Background()))
	clock.Advance(time.Minute + time.Millisecond)
	require.NoError(t, limiter.Wait(context.Background()))
	require.Empty(t, clock.sleeps)
}

func TestRateLimiterPartialWait(t *testing.T) {
	clock := newFakeClock()
	var waits []time.Duration
	limiter := &RateLimiter{
		Limit:  RateLimit{RequestsPerWindow: 1, WindowDuration: 10 * time.Second},
		Clock:  clock.Now,
		Sleep:  clock.Sleep,
		OnWait: func(wait time.Duration) { waits = append(waits, wait) },
	}

	require.NoError(t, limiter.Wait(context.Background()))
	clock.Advance(4 * time.Second)
	require.NoError(t, limiter.Wait(context.Background()))
	require.Equal(t, 6*time.Second, waits[0])
}

func TestRateLimiterContextCancel(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, limiter.Wait(ctx), context.Canceled)
}

func TestRateLimiterMargin(t *testing.T) {
	limiter := NewRateLimiter(10, time.Minute)
	limiter.ApplySafetyMargin(0.9)
	require.Equal(t, 9, limiter.applyMargin(limiter.Limit).RequestsPerWindow)

	limiter.ApplySafetyMargin(1.5)
	require.Equal(t, 0.9, limiter.Margin)
}

func TestRouterFirstMatchWins(t *testing.T) {
	router := NewRouter([]string{"/bots", "/"}, map[string]RateLimit{
		"/":     {RequestsPerWindow: 100, WindowDuration: time.Second},
		"/bots": {RequestsPerWindow: 60, WindowDuration: time.Minute},
	})

	require.Len(t, router.Routes, 2)
	require.Same(t, router.Routes[0].Limiter, router.Limiter("/bots/123/stats"))
	require.Same(t, router.Routes[1].Limiter, router.Limiter("/users/1"))

	require.NoError(t, router.Wait(context.Background(), "/bots/1"))
	require.Equal(t, 1, router.Routes[0].Limiter.Count())
	require.Equal(t, 0, router.Routes[1].Limiter.Count())
}

func TestRouterNoMatch(t *testing.T) {
	router := NewRouter([]string{"/bots"}, map[string]RateLimit{
		"/bots": {RequestsPerWindow: 1, WindowDuration: time.Minute},
	})

	require.Nil(t, router.Limiter("/widget"))
	require.NoError(t, router.Wait(context.Background(), "/widget"))
}

func TestRouterOverrides(t *testing.T) {
	router := NewRouter([]string{"/bots"}, map[string]RateLimit{
		"/bots": {RequestsPerWindow: 60, WindowDuration: time.Minute},
	})

	router.ApplyOverrides(map[string]int{"/bots": 5, "/missing": 1, " ": 3})
	require.Equal(t, 5, router.Routes[0].Limiter.Limit.RequestsPerWindow)
}
