package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/TheMaster3558/toppy/internal/core"
)

type stubPoster struct {
	site  core.Site
	err   error
	delay time.Duration

	mu   sync.Mutex
	seen []core.StatsSnapshot
}

func (s *stubPoster) Site() core.Site { return s.site }

func (s *stubPoster) PostStats(ctx context.Context, botID uint64, stats core.StatsSnapshot) error {
	if s.delay > 0 {
		if err := SleepContext(ctx, s.delay); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.seen = append(s.seen, stats)
	s.mu.Unlock()
	return s.err
}

func TestOrchestratorPostAll(t *testing.T) {
	topgg := &stubPoster{site: core.SiteTopGG}
	dbl := &stubPoster{site: core.SiteDiscordBotList}
	orchestrator := &Orchestrator{Posters: map[core.Site]Poster{
		core.SiteTopGG:          topgg,
		core.SiteDiscordBotList: dbl,
	}}

	stats := core.StatsSnapshot{GuildCount: 3}
	require.NoError(t, orchestrator.PostAll(context.Background(), 42, stats))
	require.Equal(t, []core.StatsSnapshot{stats}, topgg.seen)
	require.Equal(t, []core.StatsSnapshot{stats}, dbl.seen)
	require.Equal(t, []core.Site{core.SiteTopGG, core.SiteDiscordBotList}, orchestrator.Sites())
}

func TestOrchestratorPartialFailure(t *testing.T) {
	failure := errors.New("dbl down")
	slow := &stubPoster{site: core.SiteTopGG, delay: 20 * time.Millisecond}
	failing := &stubPoster{site: core.SiteDiscordBotList, err: failure}
	orchestrator := &Orchestrator{Posters: map[core.Site]Poster{
		core.SiteTopGG:          slow,
		core.SiteDiscordBotList: failing,
	}}

	err := orchestrator.PostAll(context.Background(), 42, core.StatsSnapshot{GuildCount: 1})
	require.ErrorIs(t, err, failure)
	require.Len(t, multierr.Errors(err), 1)
	require.Len(t, slow.seen, 1)
}

func TestOrchestratorUnknownSite(t *testing.T) {
	orchestrator := &Orchestrator{Posters: map[core.Site]Poster{}}

	err := orchestrator.PostAll(context.Background(), 1, core.StatsSnapshot{}, core.SiteDiscordBotsGG)
	require.ErrorIs(t, err, core.ErrNoTokenSet)
}
