package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Site identifies a bot-listing website.
type Site string

const (
	SiteTopGG          Site = "Top.gg"
	SiteDiscordBotList Site = "Discord Bot List"
	SiteDiscordBotsGG  Site = "DiscordBotsGG"
)

// Sites lists every supported site in posting order.
var Sites = []Site{SiteTopGG, SiteDiscordBotList, SiteDiscordBotsGG}

// EventPrefix returns the prefix used for events dispatched on behalf of the site.
func (s Site) EventPrefix() string {
	switch s {
	case SiteTopGG:
		return "topgg"
	case SiteDiscordBotList:
		return "dbl"
	case SiteDiscordBotsGG:
		return "dbgg"
	default:
		return strings.ToLower(strings.ReplaceAll(string(s), " ", "_"))
	}
}

// Event returns the site-scoped event name, e.g. "topgg_vote".
func (s Site) Event(suffix string) string {
	return s.EventPrefix() + "_" + suffix
}

// ParseSite accepts a display tag or an event prefix.
func ParseSite(value string) (Site, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, site := range Sites {
		if normalized == strings.ToLower(string(site)) || normalized == site.EventPrefix() {
			return site, nil
		}
	}
	switch normalized {
	case "top.gg", "top_gg", "top-gg":
		return SiteTopGG, nil
	case "discordbotlist", "discord-bot-list":
		return SiteDiscordBotList, nil
	case "discord.bots.gg", "discordbotsgg", "discord-bots-gg":
		return SiteDiscordBotsGG, nil
	}
	return "", fmt.Errorf("unknown site: %q", value)
}

// VoteType distinguishes real votes from test deliveries.
type VoteType string

const (
	VoteTypeUpvote VoteType = "upvote"
	VoteTypeTest   VoteType = "test"
)

// StatsSnapshot is gathered from the host once per post cycle.
type StatsSnapshot struct {
	GuildCount       int           `json:"guild_count"`
	ShardCount       Optional[int] `json:"shard_count"`
	VoiceConnections Optional[int] `json:"voice_connections"`
	UserCount        Optional[int] `json:"user_count"`
}

// VotePayload is one inbound vote notification. It is built once from the
// webhook body and never mutated.
type VotePayload struct {
	Site       Site             `json:"site"`
	UserID     uint64           `json:"user_id"`
	BotID      Optional[uint64] `json:"bot_id"`
	Type       VoteType         `json:"type"`
	IsWeekend  bool             `json:"is_weekend"`
	Query      Optional[string] `json:"query"`
	Username   Optional[string] `json:"username"`
	Avatar     Optional[string] `json:"avatar"`
	Admin      bool             `json:"admin"`
	ReceivedAt time.Time        `json:"received_at"`
	Raw        json.RawMessage  `json:"raw,omitempty"`
}

// CachedVote is a persisted vote record.
type CachedVote struct {
	Number int64     `json:"number"`
	UserID uint64    `json:"user_id"`
	Time   time.Time `json:"time"`
	Site   Site      `json:"site"`
}

// NewCachedVote derives the persisted record for a payload.
func NewCachedVote(number int64, payload *VotePayload) CachedVote {
	return CachedVote{
		Number: number,
		UserID: payload.UserID,
		Time:   payload.ReceivedAt.UTC(),
		Site:   payload.Site,
	}
}

// VoteQuery filters cached votes. Zero values mean no filter.
type VoteQuery struct {
	Site  Site
	Limit int
}

// Match reports whether a vote passes the site filter.
func (q VoteQuery) Match(vote CachedVote) bool {
	return q.Site == "" || vote.Site == q.Site
}

// Event is dispatched to the host for post outcomes and votes.
type Event struct {
	Name string
	Site Site
	Err  error
	Vote *VotePayload
}
