package botlist

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/engine"
)

// DiscordBotsGGBaseURL is the discord.bots.gg API root.
const DiscordBotsGGBaseURL = "https://discord.bots.gg/api/v1"

var DiscordBotsGGRoutes = []string{"/"}

var DiscordBotsGGLimits = map[string]engine.RateLimit{
	"/": {RequestsPerWindow: 60, WindowDuration: 60 * time.Second},
}

// DiscordBotsGG is the discord.bots.gg API client.
type DiscordBotsGG struct {
	Requester
}

// NewDiscordBotsGG returns a discord.bots.gg client.
func NewDiscordBotsGG(token string, opts Options) *DiscordBotsGG {
	return &DiscordBotsGG{
		Requester: newRequester(core.SiteDiscordBotsGG, token, DiscordBotsGGBaseURL, DiscordBotsGGRoutes, DiscordBotsGGLimits, opts),
	}
}

func (c *DiscordBotsGG) Site() core.Site { return core.SiteDiscordBotsGG }

type discordBotsGGStats struct {
	GuildCount int  `json:"guildCount"`
	ShardCount *int `json:"shardCount,omitempty"`
}

// PostStats posts the guild count and, when known, the shard count.
func (c *DiscordBotsGG) PostStats(ctx context.Context, botID uint64, stats core.StatsSnapshot) error {
	payload := discordBotsGGStats{GuildCount: stats.GuildCount}
	if shards, ok := stats.ShardCount.Get(); ok {
		payload.ShardCount = &shards
	}

	_, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/bots/%d/stats", botID),
		JSON:   payload,
	})
	return err
}

// SearchOneBot fetches a single listing.
func (c *DiscordBotsGG) SearchOneBot(ctx context.Context, botID uint64) (*DiscordBotsGGBot, error) {
	body, err := c.Do(ctx, Request{Method: http.MethodGet, Path: fmt.Sprintf("/bots/%d", botID)})
	if err != nil {
		return nil, err
	}
	return NewDiscordBotsGGBot(body)
}
