package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/botlist"
)

// VotesView lists cached votes with receipt times relative to now.
func VotesView(votes []core.CachedVote, now time.Time) *View {
	rows := make([][]string, 0, len(votes))
	for _, vote := range votes {
		rows = append(rows, []string{
			strconv.FormatInt(vote.Number, 10),
			strconv.FormatUint(vote.UserID, 10),
			string(vote.Site),
			vote.Time.UTC().Format(time.RFC3339),
			humanize.RelTime(vote.Time, now, "ago", "from now"),
		})
	}
	if votes == nil {
		votes = []core.CachedVote{}
	}
	return &View{
		Title:  "Cached votes",
		Header: []string{"#", "User", "Site", "Received", "Age"},
		Rows:   rows,
		Footer: plural(len(votes), "vote"),
		Data:   votes,
	}
}

// VotersView lists the users returned by a Top.gg votes query.
func VotersView(users []botlist.TopGGUser) *View {
	rows := make([][]string, 0, len(users))
	for _, user := range users {
		rows = append(rows, []string{
			strconv.FormatUint(user.ID, 10),
			user.Username,
		})
	}
	if users == nil {
		users = []botlist.TopGGUser{}
	}
	return &View{
		Title:  "Recent Top.gg voters",
		Header: []string{"User ID", "Username"},
		Rows:   rows,
		Footer: plural(len(users), "voter"),
		Data:   users,
	}
}

// BotsView summarises Top.gg search results.
func BotsView(bots []botlist.TopGGBot) *View {
	rows := make([][]string, 0, len(bots))
	for _, bot := range bots {
		rows = append(rows, []string{
			strconv.FormatUint(bot.ID, 10),
			bot.Username,
			optionalCount(bot.ServerCount),
			humanize.Comma(int64(bot.MonthlyPoints)),
			humanize.Comma(int64(bot.Points)),
			truncate(bot.ShortDescription, 48),
		})
	}
	if bots == nil {
		bots = []botlist.TopGGBot{}
	}
	return &View{
		Title:  "Top.gg bots",
		Header: []string{"ID", "Name", "Servers", "Monthly votes", "Total votes", "Description"},
		Rows:   rows,
		Footer: plural(len(bots), "bot"),
		Data:   bots,
	}
}

// TopGGBotView shows one Top.gg listing as field/value pairs.
func TopGGBotView(bot *botlist.TopGGBot) *View {
	rows := [][]string{
		{"ID", strconv.FormatUint(bot.ID, 10)},
		{"Name", bot.Username},
		{"Prefix", bot.Prefix},
		{"Servers", optionalCount(bot.ServerCount)},
		{"Shards", optionalCount(bot.ShardCount)},
		{"Monthly votes", humanize.Comma(int64(bot.MonthlyPoints))},
		{"Total votes", humanize.Comma(int64(bot.Points))},
		{"Certified", strconv.FormatBool(bot.Certified)},
		{"Tags", strings.Join(bot.Tags, ", ")},
		{"Owners", joinIDs(bot.Owners)},
		{"Website", bot.Website.OrElse("")},
		{"Support", bot.Support.OrElse("")},
		{"Listed", dateOrEmpty(bot.Date)},
		{"Description", bot.ShortDescription},
	}
	return &View{
		Title:  fmt.Sprintf("%s on Top.gg", bot.Username),
		Header: []string{"Field", "Value"},
		Rows:   rows,
		Data:   bot,
	}
}

// DiscordBotsGGBotView shows one discord.bots.gg listing.
func DiscordBotsGGBotView(bot *botlist.DiscordBotsGGBot) *View {
	rows := [][]string{
		{"ID", strconv.FormatUint(bot.UserID, 10)},
		{"Name", bot.Username},
		{"Prefix", bot.Prefix},
		{"Library", bot.LibraryName},
		{"Servers", humanize.Comma(int64(bot.GuildCount))},
		{"Shards", humanize.Comma(int64(bot.ShardCount))},
		{"Owner", bot.Owner.Username},
		{"Verified", strconv.FormatBool(bot.Verified)},
		{"Online", strconv.FormatBool(bot.Online)},
		{"Status", bot.Status},
		{"Listed", dateOrEmpty(bot.AddedDate)},
		{"Description", bot.ShortDescription},
	}
	return &View{
		Title:  fmt.Sprintf("%s on discord.bots.gg", bot.Username),
		Header: []string{"Field", "Value"},
		Rows:   rows,
		Data:   bot,
	}
}

// StatsView shows the snapshot that would be posted.
func StatsView(botID uint64, stats core.StatsSnapshot) *View {
	return &View{
		Title:  "Bot statistics",
		Header: []string{"Stat", "Value"},
		Rows: [][]string{
			{"Bot ID", strconv.FormatUint(botID, 10)},
			{"Servers", humanize.Comma(int64(stats.GuildCount))},
			{"Shards", optionalCount(stats.ShardCount)},
			{"Users", optionalCount(stats.UserCount)},
			{"Voice connections", optionalCount(stats.VoiceConnections)},
		},
		Data: struct {
			BotID uint64             `json:"bot_id"`
			Stats core.StatsSnapshot `json:"stats"`
		}{botID, stats},
	}
}

// PostResult is the outcome of posting to one site.
type PostResult struct {
	Site     core.Site     `json:"site"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// PostResultsView reports a post per site.
func PostResultsView(results []PostResult) *View {
	rows := make([][]string, 0, len(results))
	failed := 0
	for _, result := range results {
		status := "posted"
		if result.Error != "" {
			status = "failed"
			failed++
		}
		rows = append(rows, []string{
			string(result.Site),
			status,
			result.Duration.Round(time.Millisecond).String(),
			result.Error,
		})
	}
	return &View{
		Title:  "Stats posts",
		Header: []string{"Site", "Status", "Took", "Error"},
		Rows:   rows,
		Footer: fmt.Sprintf("%d/%d posted", len(results)-failed, len(results)),
		Data:   results,
	}
}

func optionalCount(value core.Optional[int]) string {
	if n, ok := value.Get(); ok {
		return humanize.Comma(int64(n))
	}
	return "-"
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

func joinIDs(ids []uint64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(id, 10))
	}
	return strings.Join(parts, ", ")
}

func dateOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func truncate(value string, limit int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-1]) + "…"
}
