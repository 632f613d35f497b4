package toppy

import (
	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/botlist"
	"github.com/TheMaster3558/toppy/internal/core/engine"
)

// Shared types, re-exported so callers outside this module can name them.
type (
	Site           = core.Site
	Host           = core.Host
	Event          = core.Event
	StatsSnapshot  = core.StatsSnapshot
	VotePayload    = core.VotePayload
	CachedVote     = core.CachedVote
	VoteCache      = core.VoteCache
	SchedulerState = engine.SchedulerState

	TopGGClient          = botlist.TopGG
	DiscordBotListClient = botlist.DiscordBotList
	DiscordBotsGGClient  = botlist.DiscordBotsGG
)

const (
	SiteTopGG          = core.SiteTopGG
	SiteDiscordBotList = core.SiteDiscordBotList
	SiteDiscordBotsGG  = core.SiteDiscordBotsGG
)

// Errors callers match with errors.Is.
var (
	ErrNoTokenSet       = core.ErrNoTokenSet
	ErrClientNotReady   = core.ErrClientNotReady
	ErrSchedulerRunning = core.ErrSchedulerRunning
	ErrUnauthorized     = core.ErrUnauthorized
	ErrForbidden        = core.ErrForbidden
	ErrBadRequest       = core.ErrBadRequest
)
