package cmd

import (
	"context"
	"strings"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy"
	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/discordhost"
	errwrap "github.com/TheMaster3558/toppy/internal/errors"
	"github.com/TheMaster3558/toppy/internal/observability"
	"github.com/TheMaster3558/toppy/internal/server"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and keep bot list stats up to date",
	Long: `Open a Discord gateway session with discord.token and attach the
auto-poster to it. Every site with a token gets its own schedule; the first
post waits for the session to become ready.

With webhook.enabled (or --webhook) the vote webhook server runs alongside
and dispatches votes to the session's listeners.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: final post per site, then shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: reload config and apply the new auto-post interval`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindOverrides(cmd, map[string]string{
			"webhook.enabled":   "webhook",
			"autopost.interval": "interval",
		})
	},
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("webhook", false, "also run the vote webhook server")
	runCmd.Flags().Duration("interval", 0, "auto-post interval (default from config)")
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Discord.Token) == "" {
		return errwrap.NewInvalidInputError("discord.token (TOPPY_DISCORD_TOKEN) is required to run the bot")
	}

	observability.InitServerLogger(config.AppName, cfg.Logging.Level)
	logger := libraryLogger(cfg)
	initSentry(cfg)

	host, err := discordhost.New(cfg.Discord.Token, logger)
	if err != nil {
		return err
	}
	client, err := newClient(cfg, logger, cfg.AutoPost.Enabled)
	if err != nil {
		return err
	}
	host.AddAttacher(client)
	logEvents(host, client.Sites())

	cache, err := openVoteCache(ctx, cfg)
	if err != nil {
		return err
	}

	var srv *server.Server
	if cfg.Webhook.Enabled {
		srv, err = server.New(server.Options{
			Config:  cfg,
			Host:    host,
			Cache:   cache,
			Version: versionInfo.Version,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
	}

	registerCommonShutdown(logger, cache)
	signals.OnShutdown(func(ctx context.Context) error {
		observability.ServerLogger.Info("Closing Discord session...")
		return host.Close(ctx)
	})
	if srv != nil {
		registerServerShutdown(cfg, srv)
	}

	signals.OnReload(func(ctx context.Context) error {
		reloaded, err := config.LoadFile(ctx, cfgFile, runtimeOverrides())
		if err != nil {
			observability.ServerLogger.Error("Failed to reload config", zap.Error(err))
			return err
		}
		if reloaded.AutoPost.Interval <= 0 {
			return nil
		}
		for _, site := range client.Sites() {
			if err := client.SetInterval(site, reloaded.AutoPost.Interval); err != nil {
				return err
			}
		}
		observability.ServerLogger.Info("Configuration reloaded",
			zap.Duration("interval", reloaded.AutoPost.Interval))
		return nil
	})

	observability.ServerLogger.Info("Opening Discord session",
		zap.Int("sites", len(client.Sites())),
		zap.Bool("auto_post", cfg.AutoPost.Enabled),
		zap.Bool("webhook", srv != nil))
	if err := host.Open(ctx); err != nil {
		return err
	}

	return serveUntilSignal(ctx, srv)
}

// logEvents logs post outcomes and votes for every configured site.
func logEvents(host *discordhost.Host, sites []toppy.Site) {
	for _, site := range sites {
		host.Handle(site.Event("post_success"), func(e core.Event) {
			observability.ServerLogger.Debug("Posted stats", zap.String("site", string(e.Site)))
		})
		host.Handle(site.Event("post_error"), func(e core.Event) {
			observability.ServerLogger.Warn("Stats post failed",
				zap.String("site", string(e.Site)), zap.Error(e.Err))
		})
		host.Handle(site.Event("vote"), func(e core.Event) {
			if e.Vote == nil {
				return
			}
			observability.ServerLogger.Info("Vote received",
				zap.String("site", string(e.Site)),
				zap.Uint64("user_id", e.Vote.UserID),
				zap.String("type", string(e.Vote.Type)))
		})
	}
}
