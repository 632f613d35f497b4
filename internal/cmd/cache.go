package cmd

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the vote cache",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindOverrides(cmd, map[string]string{
			"vote_cache.backend": "backend",
			"vote_cache.dir":     "dir",
		})
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached votes, newest last",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := core.VoteQuery{}
		query.Limit, _ = cmd.Flags().GetInt("limit")
		if siteName, _ := cmd.Flags().GetString("site"); strings.TrimSpace(siteName) != "" {
			site, err := core.ParseSite(siteName)
			if err != nil {
				return err
			}
			query.Site = site
		}

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		cache, err := requireVoteCache(ctx, cfg)
		if err != nil {
			return err
		}
		defer cache.Close() // nolint:errcheck // best-effort cleanup

		votes, err := cache.Query(ctx, query)
		if err != nil {
			return err
		}
		return writeView(cmd, output.VotesView(votes, time.Now()))
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <number>",
	Short: "Show one cached vote by its number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		number, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		cache, err := requireVoteCache(ctx, cfg)
		if err != nil {
			return err
		}
		defer cache.Close() // nolint:errcheck // best-effort cleanup

		vote, err := cache.FetchOne(ctx, number)
		if err != nil {
			return err
		}
		return writeView(cmd, output.VotesView([]core.CachedVote{vote}, time.Now()))
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd, cacheShowCmd)

	cacheCmd.PersistentFlags().String("backend", "", "vote cache backend: sql, json, redis (default from config)")
	cacheCmd.PersistentFlags().String("dir", "", "vote cache directory (default from config)")

	cacheListCmd.Flags().String("site", "", "only votes from this site")
	cacheListCmd.Flags().Int("limit", 0, "only the newest N votes (0 for all)")
	addOutputFlags(cacheListCmd)
	addOutputFlags(cacheShowCmd)
}
