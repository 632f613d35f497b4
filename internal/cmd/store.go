package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy"
	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/votecache"
	"github.com/TheMaster3558/toppy/internal/observability"
)

// openVoteCache connects the configured backend. It returns nil when the
// backend is "none".
func openVoteCache(ctx context.Context, cfg *config.Config) (core.VoteCache, error) {
	cache, err := votecache.New(cfg)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return nil, nil
	}
	if err := cache.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s vote cache: %w", cfg.VoteCache.Backend, err)
	}
	return cache, nil
}

// requireVoteCache is openVoteCache for commands that cannot run without one.
func requireVoteCache(ctx context.Context, cfg *config.Config) (core.VoteCache, error) {
	cache, err := openVoteCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return nil, fmt.Errorf("vote cache is disabled; set vote_cache.backend or pass --backend")
	}
	return cache, nil
}

// libraryLogger is the zap logger handed to the client, host and server.
func libraryLogger(cfg *config.Config) *zap.Logger {
	logger, err := observability.NewZapLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newClient builds a toppy client from config. autoPost overrides the
// configured scheduler setting.
func newClient(cfg *config.Config, logger *zap.Logger, autoPost bool) (*toppy.Client, error) {
	opts, err := toppy.OptionsFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	opts.AutoPost = autoPost
	opts.UserAgent = fmt.Sprintf("%s/%s", config.AppName, versionInfo.Version)
	return toppy.New(opts)
}
