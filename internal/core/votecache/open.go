package votecache

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/store"
)

const (
	BackendNone  = "none"
	BackendSQL   = "sql"
	BackendJSON  = "json"
	BackendRedis = "redis"
)

// New returns the configured backend, unconnected. It returns nil for
// backend "none".
func New(cfg *config.Config) (core.VoteCache, error) {
	if cfg == nil {
		return nil, nil
	}

	switch strings.ToLower(strings.TrimSpace(cfg.VoteCache.Backend)) {
	case "", BackendNone:
		return nil, nil
	case BackendSQL:
		return store.NewVoteCache(cfg.Store, cfg.VoteCache.Dir), nil
	case BackendJSON:
		return NewJSONCache(cfg.VoteCache.Dir), nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisCache(client, cfg.Redis.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown vote cache backend: %q", cfg.VoteCache.Backend)
	}
}
