//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.Close())
}

func TestLibsqlVoteCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cache := NewVoteCache(config.StoreConfig{Driver: "libsql", Path: dir + "/votes.db"}, dir)
	require.NoError(t, cache.Connect(ctx))
	defer cache.Close() // nolint:errcheck // test cleanup

	vote, err := cache.Insert(ctx, &core.VotePayload{
		Site:       core.SiteTopGG,
		UserID:     7,
		ReceivedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), vote.Number)

	fetched, err := cache.FetchOne(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, vote, fetched)
}
