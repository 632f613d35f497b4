package botlist

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/engine"
)

// DiscordBotListBaseURL is the discordbotlist.com API root.
const DiscordBotListBaseURL = "https://discordbotlist.com/api/v1"

var DiscordBotListRoutes = []string{"/"}

var DiscordBotListLimits = map[string]engine.RateLimit{
	"/": {RequestsPerWindow: 60, WindowDuration: 60 * time.Second},
}

// DiscordBotList is the discordbotlist.com API client.
type DiscordBotList struct {
	Requester
}

// NewDiscordBotList returns a Discord Bot List client.
func NewDiscordBotList(token string, opts Options) *DiscordBotList {
	return &DiscordBotList{
		Requester: newRequester(core.SiteDiscordBotList, token, DiscordBotListBaseURL, DiscordBotListRoutes, DiscordBotListLimits, opts),
	}
}

func (c *DiscordBotList) Site() core.Site { return core.SiteDiscordBotList }

// PostStats posts guild, user and voice connection counts as query params.
// Unknown counts are sent as zero.
func (c *DiscordBotList) PostStats(ctx context.Context, botID uint64, stats core.StatsSnapshot) error {
	params := url.Values{}
	params.Set("voice_connections", strconv.Itoa(stats.VoiceConnections.OrElse(0)))
	params.Set("users", strconv.Itoa(stats.UserCount.OrElse(0)))
	params.Set("guilds", strconv.Itoa(stats.GuildCount))

	_, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/bots/%d/stats", botID),
		Query:  params,
	})
	return err
}
