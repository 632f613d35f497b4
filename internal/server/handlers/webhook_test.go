package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/votecache"
	"github.com/TheMaster3558/toppy/internal/metrics"
)

type fakeHost struct {
	mu     sync.Mutex
	closed bool
	events []core.Event
}

func (h *fakeHost) WaitUntilReady(context.Context) error { return nil }
func (h *fakeHost) IsClosed() bool                       { return h.closed }
func (h *fakeHost) BotID() (uint64, error)               { return 42, nil }
func (h *fakeHost) Stats() core.StatsSnapshot            { return core.StatsSnapshot{GuildCount: 1} }

func (h *fakeHost) Dispatch(event core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *fakeHost) Events() []core.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]core.Event(nil), h.events...)
}

type fakeCache struct {
	mu       sync.Mutex
	err      error
	inserted []*core.VotePayload
}

func newFakeCache() *fakeCache { return &fakeCache{} }

func (c *fakeCache) Connect(context.Context) error { return nil }

func (c *fakeCache) Insert(_ context.Context, payload *core.VotePayload) (core.CachedVote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return core.CachedVote{}, c.err
	}
	c.inserted = append(c.inserted, payload)
	return core.NewCachedVote(int64(len(c.inserted)), payload), nil
}

func (c *fakeCache) FetchOne(context.Context, int64) (core.CachedVote, error) {
	return core.CachedVote{}, core.ErrVoteNotFound
}

func (c *fakeCache) FetchMany(context.Context) ([]core.CachedVote, error) { return nil, c.err }

func (c *fakeCache) Query(context.Context, core.VoteQuery) ([]core.CachedVote, error) {
	return nil, c.err
}

func (c *fakeCache) Close() error { return nil }

func (c *fakeCache) Inserted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inserted)
}

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newTestWebhook(t *testing.T, cfg config.WebhookConfig) (*Webhook, *fakeHost, *fakeCache) {
	t.Helper()
	host := &fakeHost{}
	cache := newFakeCache()
	hook, err := NewWebhook(host, cache, cfg, nil)
	require.NoError(t, err)
	hook.Now = func() time.Time { return fixedNow }
	return hook, host, cache
}

func post(handler http.HandlerFunc, body, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func secretsConfig() config.WebhookConfig {
	return config.WebhookConfig{Secrets: map[string]string{
		"topgg": "tg-secret",
		"dbl":   "dbl-secret",
		"dbgg":  "gg-secret",
	}}
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	hook, host, cache := newTestWebhook(t, secretsConfig())

	cases := map[string]*httptest.ResponseRecorder{
		"topgg": post(hook.TopGG, `{"bot":"1","user":"2","type":"upvote","isWeekend":false}`, "wrong"),
		"dbl":   post(hook.DiscordBotList, `{"id":"2","username":"x","avatar":"a","admin":false}`, ""),
		"dbgg":  post(hook.DiscordBotsGG, `{"secret":"wrong","userId":"2"}`, "gg-secret"),
	}
	for name, rec := range cases {
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Contains(t, rec.Body.String(), "UNAUTHORIZED", name)
	}
	assert.Empty(t, host.Events())
	assert.Zero(t, cache.Inserted())
}

func TestWebhookTopGGAccepted(t *testing.T) {
	hook, host, cache := newTestWebhook(t, secretsConfig())

	rec := post(hook.TopGG, `{"bot":"264811613708746752","user":"1234","type":"test","isWeekend":true,"query":"?a=1"}`, "tg-secret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, WebhookResponseBody, rec.Body.String())

	events := host.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "topgg_vote", events[0].Name)

	vote := events[0].Vote
	require.NotNil(t, vote)
	assert.Equal(t, core.SiteTopGG, vote.Site)
	assert.Equal(t, uint64(1234), vote.UserID)
	botID, ok := vote.BotID.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(264811613708746752), botID)
	assert.Equal(t, core.VoteTypeTest, vote.Type)
	assert.True(t, vote.IsWeekend)
	assert.Equal(t, "?a=1", vote.Query.OrElse(""))
	assert.Equal(t, fixedNow, vote.ReceivedAt)
	assert.Equal(t, 1, cache.Inserted())
}

func TestWebhookDiscordBotListAccepted(t *testing.T) {
	hook, host, _ := newTestWebhook(t, secretsConfig())

	rec := post(hook.DiscordBotList, `{"id":"99","username":"voter","avatar":"abc","admin":true}`, "dbl-secret")
	require.Equal(t, http.StatusOK, rec.Code)

	events := host.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "dbl_vote", events[0].Name)
	assert.Equal(t, uint64(99), events[0].Vote.UserID)
	assert.Equal(t, "abc", events[0].Vote.Avatar.OrElse(""))
	assert.True(t, events[0].Vote.Admin)
	assert.False(t, events[0].Vote.BotID.IsSet())
}

func TestWebhookDiscordBotsGGUsesBodySecret(t *testing.T) {
	hook, host, _ := newTestWebhook(t, secretsConfig())

	rec := post(hook.DiscordBotsGG, `{"secret":"gg-secret","userId":77,"botId":"5","username":"u"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	events := host.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "dbgg_vote", events[0].Name)
	assert.Equal(t, uint64(77), events[0].Vote.UserID)
	assert.Equal(t, uint64(5), events[0].Vote.BotID.OrElse(0))
}

func TestWebhookBadRequests(t *testing.T) {
	hook, host, cache := newTestWebhook(t, secretsConfig())

	assert.Equal(t, http.StatusBadRequest, post(hook.TopGG, `{not json`, "tg-secret").Code)
	assert.Equal(t, http.StatusBadRequest, post(hook.TopGG, `{"bot":"1","type":"upvote"}`, "tg-secret").Code)
	assert.Equal(t, http.StatusBadRequest, post(hook.DiscordBotList, `{"username":"x"}`, "dbl-secret").Code)
	assert.Equal(t, http.StatusBadRequest, post(hook.DiscordBotsGG, `{"secret":"gg-secret"}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, post(hook.DiscordBotsGG, `[`, "").Code)

	assert.Empty(t, host.Events())
	assert.Zero(t, cache.Inserted())
}

func TestWebhookMissingFieldWithBadSecretIsUnauthorized(t *testing.T) {
	hook, _, _ := newTestWebhook(t, secretsConfig())
	assert.Equal(t, http.StatusUnauthorized, post(hook.DiscordBotsGG, `{"secret":"nope"}`, "").Code)
}

func TestWebhookDisabledAuth(t *testing.T) {
	cfg := secretsConfig()
	cfg.DisableAuth = []string{"topgg", "dbgg"}
	hook, host, _ := newTestWebhook(t, cfg)

	assert.Equal(t, http.StatusOK, post(hook.TopGG, `{"bot":"1","user":"2"}`, "").Code)
	assert.Equal(t, http.StatusOK, post(hook.DiscordBotsGG, `{"userId":"2"}`, "").Code)
	assert.Equal(t, http.StatusUnauthorized, post(hook.DiscordBotList, `{"id":"2"}`, "").Code)
	assert.Len(t, host.Events(), 2)
}

func TestResolveSecretsGeneratesMissing(t *testing.T) {
	secrets, err := ResolveSecrets(config.WebhookConfig{Secrets: map[string]string{"dbl": "set"}})
	require.NoError(t, err)

	assert.Equal(t, Secret{Value: "set"}, secrets[core.SiteDiscordBotList])
	for _, site := range []core.Site{core.SiteTopGG, core.SiteDiscordBotsGG} {
		assert.True(t, secrets[site].Generated)
		assert.Len(t, secrets[site].Value, 32)
	}
	assert.NotEqual(t, secrets[core.SiteTopGG].Value, secrets[core.SiteDiscordBotsGG].Value)

	_, err = ResolveSecrets(config.WebhookConfig{DisableAuth: []string{"nowhere"}})
	assert.Error(t, err)
}

func TestWebhookCacheFailureStillAccepts(t *testing.T) {
	hook, host, cache := newTestWebhook(t, secretsConfig())
	cache.err = assert.AnError
	failures := metrics.ErrorsTotal.WithLabelValues("VOTE_CACHE_ERROR", "200")
	before := testutil.ToFloat64(failures)

	rec := post(hook.TopGG, `{"bot":"1","user":"2"}`, "tg-secret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, host.Events(), 1)
	assert.Equal(t, before+1, testutil.ToFloat64(failures))
}

func TestWebhookPersistsToJSONCache(t *testing.T) {
	cache := votecache.NewJSONCache(t.TempDir())
	require.NoError(t, cache.Connect(context.Background()))
	t.Cleanup(func() { _ = cache.Close() })

	host := &fakeHost{}
	hook, err := NewWebhook(host, cache, config.WebhookConfig{DisableAuth: []string{"dbl"}}, nil)
	require.NoError(t, err)

	for _, id := range []string{"10", "11"} {
		require.Equal(t, http.StatusOK, post(hook.DiscordBotList, `{"id":"`+id+`"}`, "").Code)
	}

	votes, err := cache.FetchMany(context.Background())
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.Equal(t, int64(1), votes[0].Number)
	assert.Equal(t, uint64(11), votes[1].UserID)
	assert.Equal(t, core.SiteDiscordBotList, votes[1].Site)
}
