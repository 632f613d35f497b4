package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy/internal/core"
)

// DefaultInterval is the auto-post period when none is configured.
const DefaultInterval = 600 * time.Second

// DefaultFinalPostTimeout bounds the last post fired by Finish.
const DefaultFinalPostTimeout = 15 * time.Second

// SchedulerState is the lifecycle state of a Scheduler.
type SchedulerState string

const (
	StateIdle      SchedulerState = "idle"
	StateRunning   SchedulerState = "running"
	StateCancelled SchedulerState = "cancelled"
	StateFinished  SchedulerState = "finished"
)

// PostFunc posts the host's current stats to one site.
type PostFunc func(ctx context.Context) error

// Scheduler periodically posts stats for one site while the host is up.
type Scheduler struct {
	Site     core.Site
	Post     PostFunc
	Host     core.Host
	Logger   *zap.Logger
	Sleep    func(ctx context.Context, d time.Duration) error
	OnResult func(site core.Site, err error)

	FinalPostTimeout time.Duration

	mu       sync.Mutex
	interval time.Duration
	state    SchedulerState
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewScheduler returns an idle scheduler.
func NewScheduler(site core.Site, interval time.Duration, post PostFunc, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Site:     site,
		Post:     post,
		Logger:   logger.With(zap.String("site", string(site))),
		interval: interval,
		state:    StateIdle,
	}
}

// Start arms a fresh background task. It is valid from idle, cancelled or
// finished; a running scheduler must be cancelled first.
func (s *Scheduler) Start(ctx context.Context, host core.Host) error {
	if s == nil || s.Post == nil {
		return errors.New("scheduler is not configured")
	}
	if host == nil {
		return errors.New("scheduler requires a host")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return fmt.Errorf("%s: %w", s.Site, core.ErrSchedulerRunning)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.Host = host
	s.cancel = cancel
	s.state = StateRunning

	s.wg.Add(1)
	go s.run(loopCtx, host)

	s.logger().Debug("Auto-post scheduled", zap.Duration("interval", s.intervalLocked()))
	return nil
}

// Cancel stops the task. Calling it again, or on a scheduler that never
// started, is a no-op.
func (s *Scheduler) Cancel() {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.state = StateCancelled
	s.logger().Debug("Auto-post cancelled")
}

// Finish cancels the task, marks the scheduler finished and fires one last
// post in the background.
func (s *Scheduler) Finish(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.state == StateRunning && s.cancel != nil {
		s.cancel()
	}
	s.state = StateFinished
	s.mu.Unlock()
	s.logger().Debug("Auto-post finished")

	timeout := s.FinalPostTimeout
	if timeout <= 0 {
		timeout = DefaultFinalPostTimeout
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		_ = s.PostOnce(postCtx)
	}()
}

// Wait blocks until the loop and any final post have returned.
func (s *Scheduler) Wait(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interval returns the configured period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intervalLocked()
}

// SetInterval changes the period used from the next sleep on.
func (s *Scheduler) SetInterval(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
}

// PostOnce posts and reports the outcome as a host event. Errors are
// returned for callers that want them but never stop the loop.
func (s *Scheduler) PostOnce(ctx context.Context) error {
	err := s.Post(ctx)

	// Abandoned by Cancel: nothing to report.
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return err
	}

	if s.OnResult != nil {
		s.OnResult(s.Site, err)
	}

	host := s.currentHost()
	if err != nil {
		s.logger().Warn("Auto-post failed", zap.Error(err))
		if host != nil {
			host.Dispatch(core.Event{Name: s.Site.Event("post_error"), Site: s.Site, Err: err})
		}
		return err
	}

	s.logger().Debug("Auto-post succeeded")
	if host != nil {
		host.Dispatch(core.Event{Name: s.Site.Event("post_success"), Site: s.Site})
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, host core.Host) {
	defer s.wg.Done()

	if err := host.WaitUntilReady(ctx); err != nil {
		return
	}

	for !host.IsClosed() {
		if ctx.Err() != nil {
			return
		}
		_ = s.PostOnce(ctx)

		if err := s.sleep(ctx, s.Interval()); err != nil {
			return
		}
	}

	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateFinished
		s.cancel()
	}
	s.mu.Unlock()
}

func (s *Scheduler) currentHost() core.Host {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Host
}

func (s *Scheduler) intervalLocked() time.Duration {
	if s.interval <= 0 {
		return DefaultInterval
	}
	return s.interval
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

func (s *Scheduler) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
