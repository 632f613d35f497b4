package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/observability"
	"github.com/TheMaster3558/toppy/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive vote webhooks without a Discord session",
	Long: `Start the vote webhook server on its own. Votes are authenticated,
counted and written to the configured vote cache.

Endpoints:
  POST /topgg, /dbl, /dbgg   vote webhooks
  GET  /health/*, /version   operational probes
  GET  /metrics              Prometheus metrics

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindOverrides(cmd, map[string]string{
			"server.host":        "host",
			"server.port":        "port",
			"vote_cache.backend": "backend",
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		cfg.Webhook.Enabled = true

		observability.InitServerLogger(config.AppName, cfg.Logging.Level)
		logger := libraryLogger(cfg)
		initSentry(cfg)

		cache, err := openVoteCache(ctx, cfg)
		if err != nil {
			return err
		}

		srv, err := server.New(server.Options{
			Config:  cfg,
			Cache:   cache,
			Version: versionInfo.Version,
			Logger:  logger,
		})
		if err != nil {
			return err
		}

		registerCommonShutdown(logger, cache)
		registerServerShutdown(cfg, srv)
		return serveUntilSignal(ctx, srv)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("backend", "", "vote cache backend: none, sql, json, redis")
}

// bindOverrides binds flags to config paths. Binding happens per command so
// commands sharing a flag name do not overwrite each other's binding.
func bindOverrides(cmd *cobra.Command, flags map[string]string) error {
	for key, name := range flags {
		if err := viper.BindPFlag(key, cmd.Flag(name)); err != nil {
			return err
		}
	}
	return nil
}

func initSentry(cfg *config.Config) {
	enabled, err := observability.InitSentry(cfg.Sentry, versionInfo.Version)
	if err != nil {
		observability.ServerLogger.Warn("Sentry disabled", zap.Error(err))
		return
	}
	if enabled {
		observability.ServerLogger.Info("Sentry error reporting enabled",
			zap.String("environment", cfg.Sentry.Environment))
	}
}

// registerCommonShutdown registers the handlers that run last: closing the
// vote cache, then flushing Sentry and the loggers.
func registerCommonShutdown(logger *zap.Logger, cache core.VoteCache) {
	// LIFO: registered first, executed last.
	signals.OnShutdown(func(ctx context.Context) error {
		observability.ServerLogger.Info("Flushing logger...")
		_ = logger.Sync()
		if err := observability.ServerLogger.Sync(); err != nil {
			// Sync errors are often benign (stdout/stderr already closed)
			observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
				zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		observability.FlushSentry(2 * time.Second)
		return nil
	})

	if cache != nil {
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Closing vote cache...")
			return cache.Close()
		})
	}
}

func registerServerShutdown(cfg *config.Config, srv *server.Server) {
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}

	signals.OnShutdown(func(ctx context.Context) error {
		observability.ServerLogger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		observability.ServerLogger.Info("HTTP server stopped gracefully")
		return nil
	})
}

// serveUntilSignal runs srv, when set, and the signal listener until either
// returns.
func serveUntilSignal(ctx context.Context, srv *server.Server) error {
	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		observability.ServerLogger.Warn("Failed to enable double-tap force quit",
			zap.Error(err))
	}

	errChan := make(chan error, 2)
	if srv != nil {
		go func() {
			observability.ServerLogger.Info("Starting webhook server...",
				zap.String("addr", srv.Addr()))
			if err := srv.Start(); err != nil {
				errChan <- err
			}
		}()
	}

	go func() {
		err := signals.Listen(ctx)
		if err != nil {
			observability.ServerLogger.Error("Signal handler error", zap.Error(err))
		}
		errChan <- err
	}()

	return <-errChan
}
