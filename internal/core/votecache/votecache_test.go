package votecache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/store"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	return mr, cache
}

func backends(t *testing.T) map[string]core.VoteCache {
	_, redisCache := setupTestRedis(t)
	return map[string]core.VoteCache{
		"json":  NewJSONCache(t.TempDir()),
		"sql":   store.NewVoteCache(config.StoreConfig{Driver: "sqlite", Path: ":memory:"}, t.TempDir()),
		"redis": redisCache,
	}
}

func TestBackendsBehaveIdentically(t *testing.T) {
	base := time.Date(2024, 6, 1, 8, 0, 0, 500, time.UTC)
	inputs := []*core.VotePayload{
		{Site: core.SiteTopGG, UserID: 11, ReceivedAt: base},
		{Site: core.SiteDiscordBotList, UserID: 22, ReceivedAt: base.Add(time.Second)},
		{Site: core.SiteTopGG, UserID: 33, ReceivedAt: base.Add(2 * time.Second)},
	}

	for name, cache := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, cache.Connect(ctx))
			defer func() { require.NoError(t, cache.Close()) }()

			for i, input := range inputs {
				vote, err := cache.Insert(ctx, input)
				require.NoError(t, err)
				require.Equal(t, int64(i+1), vote.Number)
				require.Equal(t, input.UserID, vote.UserID)
				require.Equal(t, input.Site, vote.Site)
			}

			one, err := cache.FetchOne(ctx, 2)
			require.NoError(t, err)
			require.Equal(t, uint64(22), one.UserID)
			require.True(t, base.Add(time.Second).Equal(one.Time))

			_, err = cache.FetchOne(ctx, 42)
			require.ErrorIs(t, err, core.ErrVoteNotFound)

			all, err := cache.FetchMany(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			for i, vote := range all {
				require.Equal(t, int64(i+1), vote.Number)
			}

			topgg, err := cache.Query(ctx, core.VoteQuery{Site: core.SiteTopGG, Limit: 1})
			require.NoError(t, err)
			require.Len(t, topgg, 1)
			require.Equal(t, uint64(33), topgg[0].UserID)
		})
	}
}

func TestJSONCachePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cache := NewJSONCache(dir)
	require.NoError(t, cache.Connect(ctx))
	_, err := cache.Insert(ctx, &core.VotePayload{Site: core.SiteDiscordBotsGG, UserID: 5, ReceivedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	data, err := os.ReadFile(filepath.Join(dir, JSONFileName))
	require.NoError(t, err)
	require.Contains(t, string(data), `"site": "DiscordBotsGG"`)

	reopened := NewJSONCache(dir)
	require.NoError(t, reopened.Connect(ctx))
	vote, err := reopened.Insert(ctx, &core.VotePayload{Site: core.SiteTopGG, UserID: 6, ReceivedAt: time.Now()})
	require.NoError(t, err)
	require.Equal(t, int64(2), vote.Number)
}

func TestJSONCacheRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, JSONFileName), []byte("{not json"), 0644))

	require.Error(t, NewJSONCache(dir).Connect(context.Background()))
}

func TestRedisCacheSharesSequence(t *testing.T) {
	ctx := context.Background()
	mr, first := setupTestRedis(t)
	second := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")

	require.NoError(t, first.Connect(ctx))
	require.NoError(t, second.Connect(ctx))

	a, err := first.Insert(ctx, &core.VotePayload{Site: core.SiteTopGG, UserID: 1, ReceivedAt: time.Now()})
	require.NoError(t, err)
	b, err := second.Insert(ctx, &core.VotePayload{Site: core.SiteTopGG, UserID: 2, ReceivedAt: time.Now()})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, []int64{a.Number, b.Number})

	seq, err := mr.Get("test:votes:seq")
	require.NoError(t, err)
	require.Equal(t, "2", seq)
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.VoteCache.Dir = t.TempDir()

	for backend, want := range map[string]any{
		"json":  &JSONCache{},
		"sql":   &store.VoteCache{},
		"redis": &RedisCache{},
	} {
		cfg.VoteCache.Backend = backend
		cache, err := New(cfg)
		require.NoError(t, err)
		require.IsType(t, want, cache)
	}

	cfg.VoteCache.Backend = "none"
	cache, err := New(cfg)
	require.NoError(t, err)
	require.Nil(t, cache)

	cfg.VoteCache.Backend = "mongo"
	_, err = New(cfg)
	require.Error(t, err)
}
