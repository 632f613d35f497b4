// Package toppy posts a Discord bot's server count to Top.gg, Discord Bot
// List and DiscordBotsGG on a schedule, and exposes each site's API.
//
// A Client never owns the bot. The bot's own startup calls Attach once its
// session exists, and its shutdown calls Detach:
//
//	client, err := toppy.New(toppy.Options{TopGGToken: token, AutoPost: true})
//	...
//	if err := client.Attach(ctx, host); err != nil { ... }
//	defer client.Detach(ctx)
package toppy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/botlist"
	"github.com/TheMaster3558/toppy/internal/core/engine"
	"github.com/TheMaster3558/toppy/internal/metrics"
	"github.com/TheMaster3558/toppy/internal/observability"
)

// ErrNotAttached is returned by operations that need a host before Attach.
var ErrNotAttached = errors.New("toppy: client is not attached to a host")

// Client posts stats to every site it holds a token for.
type Client struct {
	opts   Options
	logger *zap.Logger

	topgg *botlist.TopGG
	dbl   *botlist.DiscordBotList
	dbgg  *botlist.DiscordBotsGG

	orchestrator *engine.Orchestrator
	schedulers   map[Site]*engine.Scheduler

	mu   sync.Mutex
	host Host
}

// New builds a client with one sub-client per configured token.
func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		opts:         opts,
		logger:       logger,
		orchestrator: &engine.Orchestrator{Posters: make(map[core.Site]engine.Poster)},
		schedulers:   make(map[Site]*engine.Scheduler),
	}

	httpClient := opts.httpClient()
	siteOptions := func(site Site) botlist.Options {
		return botlist.Options{
			Client:     httpClient,
			BaseURL:    opts.BaseURLs[site],
			Logger:     logger,
			UserAgent:  opts.UserAgent,
			MaxRetries: opts.MaxRetries,
			Limits:     opts.RateLimits[site],
			Margin:     opts.RateLimitMargin,
		}
	}

	if token := opts.token(SiteTopGG); token != "" {
		c.topgg = botlist.NewTopGG(token, opts.PostShardCount, siteOptions(SiteTopGG))
		c.register(c.topgg, &c.topgg.Requester)
	}
	if token := opts.token(SiteDiscordBotList); token != "" {
		c.dbl = botlist.NewDiscordBotList(token, siteOptions(SiteDiscordBotList))
		c.register(c.dbl, &c.dbl.Requester)
	}
	if token := opts.token(SiteDiscordBotsGG); token != "" {
		c.dbgg = botlist.NewDiscordBotsGG(token, siteOptions(SiteDiscordBotsGG))
		c.register(c.dbgg, &c.dbgg.Requester)
	}

	if len(c.schedulers) == 0 {
		return nil, ErrNoTokenSet
	}
	return c, nil
}

func (c *Client) register(poster engine.Poster, requester *botlist.Requester) {
	site := poster.Site()
	prefix := site.EventPrefix()

	requester.Router.Instrument(nil, nil, func(pattern string, wait time.Duration) {
		metrics.RecordRateLimitWait(prefix, pattern, wait)
	})
	requester.OnRetry = func(core.Site, time.Duration) {
		metrics.RecordRetry(prefix)
	}

	c.orchestrator.Posters[site] = poster

	scheduler := engine.NewScheduler(site, c.opts.interval(), func(ctx context.Context) error {
		return c.PostStatsTo(ctx, site)
	}, c.logger)
	scheduler.FinalPostTimeout = c.opts.FinalPostTimeout
	scheduler.OnResult = func(_ core.Site, err error) {
		metrics.RecordPost(prefix, err)
		observability.ReportPostError(prefix, err)
	}
	c.schedulers[site] = scheduler
}

// TopGG returns the Top.gg client, or nil without a Top.gg token.
func (c *Client) TopGG() *TopGGClient { return c.topgg }

// DiscordBotList returns the Discord Bot List client, or nil without a token.
func (c *Client) DiscordBotList() *DiscordBotListClient { return c.dbl }

// DiscordBotsGG returns the DiscordBotsGG client, or nil without a token.
func (c *Client) DiscordBotsGG() *DiscordBotsGGClient { return c.dbgg }

// Sites lists the configured sites in posting order.
func (c *Client) Sites() []Site {
	return c.orchestrator.Sites()
}

// Attach binds the client to host. With AutoPost set it starts every
// scheduler; each waits for the host to become ready before its first post.
func (c *Client) Attach(ctx context.Context, host Host) error {
	if host == nil {
		return errors.New("toppy: attach requires a host")
	}

	c.mu.Lock()
	c.host = host
	c.mu.Unlock()

	c.logger.Info("Attached to host", zap.Int("sites", len(c.schedulers)), zap.Bool("auto_post", c.opts.AutoPost))
	if !c.opts.AutoPost {
		return nil
	}
	return c.Start(ctx)
}

// Detach finishes every running scheduler, which fires one final post per
// site, and waits for them until ctx expires.
func (c *Client) Detach(ctx context.Context) error {
	var running []*engine.Scheduler
	for _, site := range c.Sites() {
		scheduler := c.schedulers[site]
		if scheduler.State() == engine.StateRunning {
			scheduler.Finish(ctx)
			running = append(running, scheduler)
		}
	}

	var errs error
	for _, scheduler := range running {
		errs = multierr.Append(errs, scheduler.Wait(ctx))
	}

	c.mu.Lock()
	c.host = nil
	c.mu.Unlock()

	c.logger.Info("Detached from host")
	return errs
}

// Start starts the schedulers for sites, or for every configured site.
func (c *Client) Start(ctx context.Context, sites ...Site) error {
	host := c.currentHost()
	if host == nil {
		return ErrNotAttached
	}

	schedulers, err := c.pick(sites)
	if err != nil {
		return err
	}
	var errs error
	for _, scheduler := range schedulers {
		errs = multierr.Append(errs, scheduler.Start(ctx, host))
	}
	return errs
}

// Cancel stops the schedulers for sites, or all of them. In-flight posts
// are abandoned. Sites without a token are reported with ErrNoTokenSet
// after the others have been cancelled.
func (c *Client) Cancel(sites ...Site) error {
	schedulers, err := c.pick(sites)
	for _, scheduler := range schedulers {
		scheduler.Cancel()
	}
	return err
}

// SetInterval changes a site's auto-post period from its next sleep on.
func (c *Client) SetInterval(site Site, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("toppy: interval must be positive, got %s", interval)
	}
	scheduler, ok := c.schedulers[site]
	if !ok {
		return fmt.Errorf("%s: %w", site, ErrNoTokenSet)
	}
	scheduler.SetInterval(interval)
	return nil
}

// State reports a site's scheduler state.
func (c *Client) State(site Site) (SchedulerState, error) {
	scheduler, ok := c.schedulers[site]
	if !ok {
		return "", fmt.Errorf("%s: %w", site, ErrNoTokenSet)
	}
	return scheduler.State(), nil
}

// PostStats posts the host's current stats to every configured site at
// once. A failing site does not stop the others; failures are combined.
func (c *Client) PostStats(ctx context.Context) error {
	return c.post(ctx, c.Sites()...)
}

// PostStatsTo posts the host's current stats to one site.
func (c *Client) PostStatsTo(ctx context.Context, site Site) error {
	return c.post(ctx, site)
}

func (c *Client) post(ctx context.Context, sites ...Site) error {
	host := c.currentHost()
	if host == nil {
		return ErrNotAttached
	}
	botID, err := host.BotID()
	if err != nil {
		return err
	}
	return c.orchestrator.PostAll(ctx, botID, host.Stats(), sites...)
}

func (c *Client) pick(sites []Site) ([]*engine.Scheduler, error) {
	if len(sites) == 0 {
		sites = c.Sites()
	}
	picked := make([]*engine.Scheduler, 0, len(sites))
	var errs error
	for _, site := range sites {
		scheduler, ok := c.schedulers[site]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", site, ErrNoTokenSet))
			continue
		}
		picked = append(picked, scheduler)
	}
	return picked, errs
}

func (c *Client) currentHost() Host {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host
}

var _ core.Attacher = (*Client)(nil)
