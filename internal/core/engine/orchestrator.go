package engine

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/TheMaster3558/toppy/internal/core"
)

// Poster posts a stats snapshot to one site.
type Poster interface {
	Site() core.Site
	PostStats(ctx context.Context, botID uint64, stats core.StatsSnapshot) error
}

// Orchestrator fans a post out across sites.
type Orchestrator struct {
	Posters map[core.Site]Poster
}

// PostAll posts to every requested site concurrently (all configured sites
// when none are named) and waits for all of them. A failing site does not
// cancel the others; every failure is returned, combined.
func (o *Orchestrator) PostAll(ctx context.Context, botID uint64, stats core.StatsSnapshot, sites ...core.Site) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(sites) == 0 {
		sites = o.Sites()
	}

	errs := make([]error, len(sites))
	var group errgroup.Group
	for i, site := range sites {
		poster, ok := o.Posters[site]
		if !ok || poster == nil {
			errs[i] = fmt.Errorf("%s: %w", site, core.ErrNoTokenSet)
			continue
		}
		group.Go(func() error {
			if err := poster.PostStats(ctx, botID, stats); err != nil {
				errs[i] = fmt.Errorf("%s: %w", site, err)
			}
			return nil
		})
	}
	_ = group.Wait()

	return multierr.Combine(errs...)
}

// Sites returns the configured sites in canonical order.
func (o *Orchestrator) Sites() []core.Site {
	sites := make([]core.Site, 0, len(o.Posters))
	for _, site := range core.Sites {
		if poster, ok := o.Posters[site]; ok && poster != nil {
			sites = append(sites, site)
		}
	}
	return sites
}
