package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check configuration before running",
	Long:  "Load the config, build the client and connect the vote cache, reporting what would run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := observability.CLILogger
		log.Info("Running health check...")

		cfg, err := loadConfig(ctx)
		if err != nil {
			log.Error("❌ Configuration invalid", zap.Error(err))
			return err
		}
		log.Info("✅ Configuration loaded")

		client, err := newClient(cfg, libraryLogger(cfg), false)
		if err != nil {
			log.Error("❌ No usable bot list token", zap.Error(err))
			return err
		}
		for _, site := range core.Sites {
			configured := false
			for _, enabled := range client.Sites() {
				configured = configured || enabled == site
			}
			if configured {
				log.Info("✅ Token set", zap.String("site", string(site)))
			} else {
				log.Info("➖ No token", zap.String("site", string(site)))
			}
		}

		if cfg.Discord.Token == "" {
			log.Warn("⚠️  discord.token is empty; `toppy run` will refuse to start")
		}

		cache, err := openVoteCache(ctx, cfg)
		if err != nil {
			log.Error("❌ Vote cache unavailable", zap.Error(err))
			return err
		}
		if cache == nil {
			log.Info("➖ Vote cache disabled")
		} else {
			defer cache.Close() // nolint:errcheck // best-effort cleanup
			if _, err := cache.Query(ctx, core.VoteQuery{Limit: 1}); err != nil {
				log.Error("❌ Vote cache unreadable", zap.Error(err))
				return err
			}
			log.Info("✅ Vote cache ready", zap.String("backend", cfg.VoteCache.Backend))
		}

		log.Info("✅ All health checks passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
