package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TheMaster3558/toppy/internal/core"
)

type stubHost struct {
	ready  chan struct{}
	closed atomic.Bool

	mu     sync.Mutex
	events []core.Event
}

func newStubHost() *stubHost {
	host := &stubHost{ready: make(chan struct{})}
	close(host.ready)
	return host
}

func (h *stubHost) WaitUntilReady(ctx context.Context) error {
	select {
	case <-h.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *stubHost) IsClosed() bool { return h.closed.Load() }

func (h *stubHost) BotID() (uint64, error) { return 1, nil }

func (h *stubHost) Stats() core.StatsSnapshot { return core.StatsSnapshot{GuildCount: 1} }

func (h *stubHost) Dispatch(event core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *stubHost) Events() []core.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]core.Event(nil), h.events...)
}

func TestSchedulerPostsUntilHostCloses(t *testing.T) {
	host := newStubHost()
	var posts atomic.Int32

	scheduler := NewScheduler(core.SiteTopGG, time.Minute, func(ctx context.Context) error {
		if posts.Add(1) == 3 {
			host.closed.Store(true)
		}
		return nil
	}, nil)
	var slept []time.Duration
	scheduler.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}

	require.NoError(t, scheduler.Start(context.Background(), host))
	require.NoError(t, scheduler.Wait(context.Background()))

	require.Equal(t, int32(3), posts.Load())
	require.Equal(t, []time.Duration{time.Minute, time.Minute, time.Minute}, slept)
	require.Equal(t, StateFinished, scheduler.State())

	events := host.Events()
	require.Len(t, events, 3)
	for _, event := range events {
		require.Equal(t, "topgg_post_success", event.Name)
	}
}

func TestSchedulerErrorDoesNotStopLoop(t *testing.T) {
	host := newStubHost()
	failure := errors.New("boom")
	var posts atomic.Int32
	var reported []error

	scheduler := NewScheduler(core.SiteDiscordBotList, 0, func(ctx context.Context) error {
		n := posts.Add(1)
		if n == 2 {
			host.closed.Store(true)
		}
		if n == 1 {
			return failure
		}
		return nil
	}, nil)
	scheduler.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	scheduler.OnResult = func(site core.Site, err error) { reported = append(reported, err) }

	require.NoError(t, scheduler.Start(context.Background(), host))
	require.NoError(t, scheduler.Wait(context.Background()))

	events := host.Events()
	require.Len(t, events, 2)
	require.Equal(t, "dbl_post_error", events[0].Name)
	require.ErrorIs(t, events[0].Err, failure)
	require.Equal(t, "dbl_post_success", events[1].Name)
	require.Equal(t, []error{failure, nil}, reported)
	require.Equal(t, DefaultInterval, scheduler.Interval())
}

func TestSchedulerCancelIsIdempotent(t *testing.T) {
	host := &stubHost{ready: make(chan struct{})}
	scheduler := NewScheduler(core.SiteTopGG, time.Minute, func(ctx context.Context) error { return nil }, nil)

	scheduler.Cancel()
	require.Equal(t, StateIdle, scheduler.State())

	require.NoError(t, scheduler.Start(context.Background(), host))
	require.Equal(t, StateRunning, scheduler.State())

	require.ErrorIs(t, scheduler.Start(context.Background(), host), core.ErrSchedulerRunning)

	scheduler.Cancel()
	scheduler.Cancel()
	require.Equal(t, StateCancelled, scheduler.State())
	require.NoError(t, scheduler.Wait(context.Background()))
	require.Empty(t, host.Events())

	require.NoError(t, scheduler.Start(context.Background(), host))
	scheduler.Cancel()
	require.NoError(t, scheduler.Wait(context.Background()))
}

func TestSchedulerFinishFiresFinalPost(t *testing.T) {
	host := &stubHost{ready: make(chan struct{})}
	var posts atomic.Int32

	scheduler := NewScheduler(core.SiteDiscordBotsGG, time.Minute, func(ctx context.Context) error {
		posts.Add(1)
		return nil
	}, nil)

	require.NoError(t, scheduler.Start(context.Background(), host))
	scheduler.Finish(context.Background())
	require.NoError(t, scheduler.Wait(context.Background()))

	require.Equal(t, StateFinished, scheduler.State())
	require.Equal(t, int32(1), posts.Load())
	require.Equal(t, "dbgg_post_success", host.Events()[0].Name)
}

func TestSchedulerFinishAfterCancelIsFinished(t *testing.T) {
	host := newStubHost()
	var posts atomic.Int32
	scheduler := NewScheduler(core.SiteTopGG, time.Hour, func(ctx context.Context) error {
		posts.Add(1)
		return nil
	}, nil)

	require.NoError(t, scheduler.Start(context.Background(), host))
	require.Eventually(t, func() bool { return posts.Load() == 1 }, time.Second, 5*time.Millisecond)

	scheduler.Cancel()
	require.Equal(t, StateCancelled, scheduler.State())

	scheduler.Finish(context.Background())
	require.NoError(t, scheduler.Wait(context.Background()))
	require.Equal(t, StateFinished, scheduler.State())
	require.Equal(t, int32(2), posts.Load())

	require.NoError(t, scheduler.Start(context.Background(), host))
	require.Equal(t, StateRunning, scheduler.State())
	scheduler.Cancel()
	require.NoError(t, scheduler.Wait(context.Background()))
}

func TestSchedulerSetInterval(t *testing.T) {
	scheduler := NewScheduler(core.SiteTopGG, 0, func(ctx context.Context) error { return nil }, nil)
	require.Equal(t, DefaultInterval, scheduler.Interval())

	scheduler.SetInterval(30 * time.Second)
	require.Equal(t, 30*time.Second, scheduler.Interval())
}
