package botlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/engine"
)

// TopGGBaseURL is the Top.gg API root.
const TopGGBaseURL = "https://top.gg/api"

// DefaultUserVoteTTL is how long a UserVote answer is reused.
const DefaultUserVoteTTL = 30 * time.Second

// TopGGRoutes is the limiter lookup order; "/bots" must precede "/".
var TopGGRoutes = []string{"/bots", "/"}

// TopGGLimits are the published Top.gg limits.
var TopGGLimits = map[string]engine.RateLimit{
	"/bots": {RequestsPerWindow: 60, WindowDuration: 60 * time.Second},
	"/":     {RequestsPerWindow: 100, WindowDuration: time.Second},
}

// TopGG is the Top.gg API client.
type TopGG struct {
	Requester

	// PostShardCount sends shard_count alongside server_count.
	PostShardCount bool

	votes *cache.Cache
}

// NewTopGG returns a Top.gg client.
func NewTopGG(token string, postShardCount bool, opts Options) *TopGG {
	return &TopGG{
		Requester:      newRequester(core.SiteTopGG, token, TopGGBaseURL, TopGGRoutes, TopGGLimits, opts),
		PostShardCount: postShardCount,
		votes:          cache.New(DefaultUserVoteTTL, 5*time.Minute),
	}
}

// Site implements engine.Poster.
func (c *TopGG) Site() core.Site { return core.SiteTopGG }

// PostStats posts the guild count, plus the shard count when enabled.
func (c *TopGG) PostStats(ctx context.Context, botID uint64, stats core.StatsSnapshot) error {
	form := url.Values{}
	form.Set("server_count", strconv.Itoa(stats.GuildCount))
	if c.PostShardCount {
		form.Set("shard_count", strconv.Itoa(stats.ShardCount.OrElse(1)))
	}

	_, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/bots/%d/stats", botID),
		Form:   form,
	})
	return err
}

// SearchOptions pages a bot search. Zero values are omitted.
type SearchOptions struct {
	Limit  int
	Offset int
}

// SearchBots searches listed bots.
func (c *TopGG) SearchBots(ctx context.Context, query string, opts SearchOptions) ([]TopGGBot, error) {
	params := url.Values{}
	params.Set("search", query)
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var payload struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: "/bots", Query: params}, &payload); err != nil {
		return nil, err
	}

	bots := make([]TopGGBot, 0, len(payload.Results))
	for _, raw := range payload.Results {
		bot, err := NewTopGGBot(raw)
		if err != nil {
			return nil, err
		}
		bots = append(bots, *bot)
	}
	return bots, nil
}

// SearchOneBot fetches a single listing.
func (c *TopGG) SearchOneBot(ctx context.Context, botID uint64) (*TopGGBot, error) {
	body, err := c.Do(ctx, Request{Method: http.MethodGet, Path: fmt.Sprintf("/bots/%d", botID)})
	if err != nil {
		return nil, err
	}
	return NewTopGGBot(body)
}

// Last1000Votes fetches the most recent voters in one request.
func (c *TopGG) Last1000Votes(ctx context.Context, botID uint64) (*VoteIterator, error) {
	var raw []json.RawMessage
	if err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: fmt.Sprintf("/bots/%d/votes", botID)}, &raw); err != nil {
		return nil, err
	}
	return newVoteIterator(raw), nil
}

// UserVote reports whether userID voted for botID in the last 12 hours.
// Answers are cached briefly.
func (c *TopGG) UserVote(ctx context.Context, botID, userID uint64) (bool, error) {
	key := strconv.FormatUint(botID, 10) + ":" + strconv.FormatUint(userID, 10)
	if c.votes != nil {
		if cached, ok := c.votes.Get(key); ok {
			if voted, ok := cached.(bool); ok {
				return voted, nil
			}
		}
	}

	params := url.Values{}
	params.Set("userId", strconv.FormatUint(userID, 10))

	var payload struct {
		Voted json.RawMessage `json:"voted"`
	}
	if err := c.DoJSON(ctx, Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/bots/%d/check", botID),
		Query:  params,
	}, &payload); err != nil {
		return false, err
	}

	voted := isTruthy(payload.Voted)
	if c.votes != nil {
		c.votes.SetDefault(key, voted)
	}
	return voted, nil
}

// The API has answered both 1/0 and true/false.
func isTruthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("true")) {
		return true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return false
}
