package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSite(t *testing.T) {
	cases := map[string]Site{
		"Top.gg":           SiteTopGG,
		"topgg":            SiteTopGG,
		" TOP-GG ":         SiteTopGG,
		"dbl":              SiteDiscordBotList,
		"Discord Bot List": SiteDiscordBotList,
		"dbgg":             SiteDiscordBotsGG,
		"discord.bots.gg":  SiteDiscordBotsGG,
	}
	for input, want := range cases {
		got, err := ParseSite(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got)
	}

	_, err := ParseSite("botsfordiscord")
	require.Error(t, err)
}

func TestSiteEvent(t *testing.T) {
	require.Equal(t, "topgg_vote", SiteTopGG.Event("vote"))
	require.Equal(t, "dbl_post_success", SiteDiscordBotList.Event("post_success"))
	require.Equal(t, "dbgg_post_error", SiteDiscordBotsGG.Event("post_error"))
}

func TestOptionalJSON(t *testing.T) {
	var stats StatsSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"guild_count":3,"shard_count":2,"user_count":null}`), &stats))
	require.Equal(t, 3, stats.GuildCount)
	require.Equal(t, 2, stats.ShardCount.OrElse(0))
	require.False(t, stats.UserCount.IsSet())
	require.False(t, stats.VoiceConnections.IsSet())

	data, err := json.Marshal(stats)
	require.NoError(t, err)
	require.JSONEq(t, `{"guild_count":3,"shard_count":2,"voice_connections":null,"user_count":null}`, string(data))
}

func TestHTTPErrorSentinels(t *testing.T) {
	err := fmt.Errorf("post: %w", &HTTPError{StatusCode: http.StatusUnauthorized})
	require.ErrorIs(t, err, ErrUnauthorized)
	require.False(t, errors.Is(err, ErrForbidden))

	limited := &RateLimitedError{HTTPError: HTTPError{StatusCode: http.StatusTooManyRequests}}
	var httpErr *HTTPError
	require.ErrorAs(t, limited, &httpErr)
	require.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
}
