package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/output"
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post stats once without a Discord session",
	Long: `Post the given statistics to every site with a token, or only to the
sites named with --site. Useful from cron jobs or deploy hooks when the
bot's counts are known out of band.`,
	Example: `  toppy post --bot-id 264811613708746752 --servers 1200 --shards 2
  toppy post --bot-id 264811613708746752 --servers 1200 --site topgg --dry-run`,
	RunE: runPost,
}

func init() {
	rootCmd.AddCommand(postCmd)

	postCmd.Flags().Uint64("bot-id", 0, "bot user id (required)")
	postCmd.Flags().Int("servers", 0, "guild count")
	postCmd.Flags().Int("shards", 0, "shard count (omitted when 0)")
	postCmd.Flags().Int("users", 0, "user count (omitted when 0)")
	postCmd.Flags().Int("voice", 0, "voice connection count (omitted when 0)")
	postCmd.Flags().StringSlice("site", nil, "sites to post to: topgg, dbl, dbgg (default all configured)")
	postCmd.Flags().Bool("dry-run", false, "show the stats without posting")
	_ = postCmd.MarkFlagRequired("bot-id")
	addOutputFlags(postCmd)
}

func runPost(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	botID, _ := cmd.Flags().GetUint64("bot-id")
	stats := core.StatsSnapshot{GuildCount: intFlag(cmd, "servers")}
	if n := intFlag(cmd, "shards"); n > 0 {
		stats.ShardCount = core.Some(n)
	}
	if n := intFlag(cmd, "users"); n > 0 {
		stats.UserCount = core.Some(n)
	}
	if n := intFlag(cmd, "voice"); n > 0 {
		stats.VoiceConnections = core.Some(n)
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return writeView(cmd, output.StatsView(botID, stats))
	}

	sites, err := parseSites(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	client, err := newClient(cfg, libraryLogger(cfg), false)
	if err != nil {
		return err
	}
	if err := client.Attach(ctx, staticHost{botID: botID, stats: stats}); err != nil {
		return err
	}
	defer func() { _ = client.Detach(ctx) }()

	if len(sites) == 0 {
		sites = client.Sites()
	}

	results := make([]output.PostResult, 0, len(sites))
	var failed int
	for _, site := range sites {
		started := time.Now()
		err := client.PostStatsTo(ctx, site)
		result := output.PostResult{Site: site, Duration: time.Since(started)}
		if err != nil {
			result.Error = err.Error()
			failed++
		}
		results = append(results, result)
	}

	if err := writeView(cmd, output.PostResultsView(results)); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d posts failed", failed, len(results))
	}
	return nil
}

func intFlag(cmd *cobra.Command, name string) int {
	value, _ := cmd.Flags().GetInt(name)
	return value
}

func parseSites(cmd *cobra.Command) ([]core.Site, error) {
	names, err := cmd.Flags().GetStringSlice("site")
	if err != nil {
		return nil, err
	}
	sites := make([]core.Site, 0, len(names))
	for _, name := range names {
		site, err := core.ParseSite(name)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, nil
}

// staticHost reports fixed statistics for one-shot posts.
type staticHost struct {
	botID uint64
	stats core.StatsSnapshot
}

func (h staticHost) WaitUntilReady(context.Context) error { return nil }
func (h staticHost) IsClosed() bool                       { return false }
func (h staticHost) Stats() core.StatsSnapshot            { return h.stats }
func (h staticHost) Dispatch(core.Event)                  {}

func (h staticHost) BotID() (uint64, error) {
	if h.botID == 0 {
		return 0, core.ErrClientNotReady
	}
	return h.botID, nil
}
