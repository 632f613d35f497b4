package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TheMaster3558/toppy"
	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/botlist"
	"github.com/TheMaster3558/toppy/internal/output"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search Top.gg bots",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient(cmd)
		if err != nil {
			return err
		}
		topgg := client.TopGG()
		if topgg == nil {
			return fmt.Errorf("%s: %w", core.SiteTopGG, core.ErrNoTokenSet)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		bots, err := topgg.SearchBots(cmd.Context(), strings.Join(args, " "), botlist.SearchOptions{Limit: limit, Offset: offset})
		if err != nil {
			return err
		}
		return writeView(cmd, output.BotsView(bots))
	},
}

var botCmd = &cobra.Command{
	Use:   "bot <bot-id>",
	Short: "Show one bot's listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		botID, err := parseSnowflake(args[0])
		if err != nil {
			return err
		}
		siteName, _ := cmd.Flags().GetString("site")
		site, err := core.ParseSite(siteName)
		if err != nil {
			return err
		}

		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		switch site {
		case core.SiteTopGG:
			if client.TopGG() == nil {
				return fmt.Errorf("%s: %w", site, core.ErrNoTokenSet)
			}
			bot, err := client.TopGG().SearchOneBot(cmd.Context(), botID)
			if err != nil {
				return err
			}
			return writeView(cmd, output.TopGGBotView(bot))
		case core.SiteDiscordBotsGG:
			if client.DiscordBotsGG() == nil {
				return fmt.Errorf("%s: %w", site, core.ErrNoTokenSet)
			}
			bot, err := client.DiscordBotsGG().SearchOneBot(cmd.Context(), botID)
			if err != nil {
				return err
			}
			return writeView(cmd, output.DiscordBotsGGBotView(bot))
		default:
			return fmt.Errorf("%s has no bot lookup", site)
		}
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <bot-id> <user-id>",
	Short: "Check whether a user voted on Top.gg in the last 12 hours",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		botID, err := parseSnowflake(args[0])
		if err != nil {
			return err
		}
		userID, err := parseSnowflake(args[1])
		if err != nil {
			return err
		}
		client, err := apiClient(cmd)
		if err != nil {
			return err
		}
		if client.TopGG() == nil {
			return fmt.Errorf("%s: %w", core.SiteTopGG, core.ErrNoTokenSet)
		}

		voted, err := client.TopGG().UserVote(cmd.Context(), botID, userID)
		if err != nil {
			return err
		}
		if voted {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d voted for %d\n", userID, botID)
		} else {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d has not voted for %d in the last 12 hours\n", userID, botID)
		}
		return err
	},
}

var votesCmd = &cobra.Command{
	Use:   "votes <bot-id>",
	Short: "List a bot's last 1000 Top.gg voters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		botID, err := parseSnowflake(args[0])
		if err != nil {
			return err
		}
		client, err := apiClient(cmd)
		if err != nil {
			return err
		}
		topgg := client.TopGG()
		if topgg == nil {
			return fmt.Errorf("%s: %w", core.SiteTopGG, core.ErrNoTokenSet)
		}

		votes, err := topgg.Last1000Votes(cmd.Context(), botID)
		if err != nil {
			return err
		}
		users := make([]botlist.TopGGUser, 0, votes.Len())
		for user, err := range votes.All() {
			if err != nil {
				return err
			}
			users = append(users, user)
		}
		return writeView(cmd, output.VotersView(users))
	},
}

func init() {
	rootCmd.AddCommand(searchCmd, botCmd, votesCmd, checkCmd)

	searchCmd.Flags().Int("limit", 20, "maximum results")
	searchCmd.Flags().Int("offset", 0, "results to skip")
	addOutputFlags(searchCmd)

	botCmd.Flags().String("site", "topgg", "site to query: topgg, dbgg")
	addOutputFlags(botCmd)

	addOutputFlags(votesCmd)
}

// apiClient builds a client for one-off API calls; no scheduler runs.
func apiClient(cmd *cobra.Command) (*toppy.Client, error) {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return nil, err
	}
	return newClient(cfg, libraryLogger(cfg), false)
}

func parseSnowflake(value string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q: want a Discord snowflake", value)
	}
	return id, nil
}
