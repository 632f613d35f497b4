package botlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/TheMaster3558/toppy/internal/core"
)

// TopGGBot is a bot listing returned by Top.gg.
type TopGGBot struct {
	ID               uint64                `json:"id"`
	Username         string                `json:"username"`
	Discriminator    string                `json:"discriminator"`
	Avatar           core.Optional[string] `json:"avatar"`
	DefAvatar        string                `json:"def_avatar"`
	Prefix           string                `json:"prefix"`
	ShortDescription string                `json:"short_description"`
	LongDescription  core.Optional[string] `json:"long_description"`
	Tags             []string              `json:"tags"`
	Website          core.Optional[string] `json:"website"`
	Support          core.Optional[string] `json:"support"`
	GitHub           core.Optional[string] `json:"github"`
	Owners           []uint64              `json:"owners"`
	Guilds           []uint64              `json:"guilds"`
	Invite           core.Optional[string] `json:"invite"`
	Date             time.Time             `json:"date"`
	ServerCount      core.Optional[int]    `json:"server_count"`
	ShardCount       core.Optional[int]    `json:"shard_count"`
	Certified        bool                  `json:"certified_bot"`
	Vanity           core.Optional[string] `json:"vanity"`
	Points           int                   `json:"points"`
	MonthlyPoints    int                   `json:"monthly_points"`
	DonateBotGuildID core.Optional[string] `json:"donatebotguildid"`
}

type topggBotWire struct {
	ID               string                `json:"id"`
	Username         string                `json:"username"`
	Discriminator    string                `json:"discriminator"`
	Avatar           core.Optional[string] `json:"avatar"`
	DefAvatar        string                `json:"defAvatar"`
	Prefix           string                `json:"prefix"`
	ShortDescription string                `json:"shortdesc"`
	LongDescription  core.Optional[string] `json:"longdesc"`
	Tags             []string              `json:"tags"`
	Website          core.Optional[string] `json:"website"`
	Support          core.Optional[string] `json:"support"`
	GitHub           core.Optional[string] `json:"github"`
	Owners           []string              `json:"owners"`
	Guilds           []string              `json:"guilds"`
	Invite           core.Optional[string] `json:"invite"`
	Date             string                `json:"date"`
	ServerCount      core.Optional[int]    `json:"server_count"`
	ShardCount       core.Optional[int]    `json:"shard_count"`
	Certified        bool                  `json:"certifiedBot"`
	Vanity           core.Optional[string] `json:"vanity"`
	Points           int                   `json:"points"`
	MonthlyPoints    int                   `json:"monthlyPoints"`
	DonateBotGuildID core.Optional[string] `json:"donatebotguildid"`
}

// NewTopGGBot parses a Top.gg bot object. Missing required fields fail here
// rather than on first access.
func NewTopGGBot(raw json.RawMessage) (*TopGGBot, error) {
	var wire topggBotWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("parse top.gg bot: %w", err)
	}

	id, err := parseSnowflake("id", wire.ID)
	if err != nil {
		return nil, fmt.Errorf("parse top.gg bot: %w", err)
	}
	if strings.TrimSpace(wire.Username) == "" {
		return nil, fmt.Errorf("parse top.gg bot %d: %w", id, errMissingField("username"))
	}
	owners, err := parseSnowflakes("owners", wire.Owners)
	if err != nil {
		return nil, fmt.Errorf("parse top.gg bot %d: %w", id, err)
	}
	guilds, err := parseSnowflakes("guilds", wire.Guilds)
	if err != nil {
		return nil, fmt.Errorf("parse top.gg bot %d: %w", id, err)
	}
	date, err := parseTime("date", wire.Date)
	if err != nil {
		return nil, fmt.Errorf("parse top.gg bot %d: %w", id, err)
	}

	return &TopGGBot{
		ID:               id,
		Username:         wire.Username,
		Discriminator:    wire.Discriminator,
		Avatar:           nonEmpty(wire.Avatar),
		DefAvatar:        wire.DefAvatar,
		Prefix:           wire.Prefix,
		ShortDescription: wire.ShortDescription,
		LongDescription:  nonEmpty(wire.LongDescription),
		Tags:             wire.Tags,
		Website:          nonEmpty(wire.Website),
		Support:          nonEmpty(wire.Support),
		GitHub:           nonEmpty(wire.GitHub),
		Owners:           owners,
		Guilds:           guilds,
		Invite:           nonEmpty(wire.Invite),
		Date:             date,
		ServerCount:      wire.ServerCount,
		ShardCount:       wire.ShardCount,
		Certified:        wire.Certified,
		Vanity:           nonEmpty(wire.Vanity),
		Points:           wire.Points,
		MonthlyPoints:    wire.MonthlyPoints,
		DonateBotGuildID: nonEmpty(wire.DonateBotGuildID),
	}, nil
}

// TopGGUser is one entry of a bot's recent voters.
type TopGGUser struct {
	ID       uint64                `json:"id"`
	Username string                `json:"username"`
	Avatar   core.Optional[string] `json:"avatar"`
}

// NewTopGGUser parses a voter object.
func NewTopGGUser(raw json.RawMessage) (TopGGUser, error) {
	var wire struct {
		ID       string                `json:"id"`
		Username string                `json:"username"`
		Avatar   core.Optional[string] `json:"avatar"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return TopGGUser{}, fmt.Errorf("parse top.gg user: %w", err)
	}
	id, err := parseSnowflake("id", wire.ID)
	if err != nil {
		return TopGGUser{}, fmt.Errorf("parse top.gg user: %w", err)
	}
	return TopGGUser{ID: id, Username: wire.Username, Avatar: nonEmpty(wire.Avatar)}, nil
}

// DiscordBotsGGOwner is the owner or a co-owner of a discord.bots.gg listing.
type DiscordBotsGGOwner struct {
	UserID        uint64 `json:"user_id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

type discordBotsGGOwnerWire struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

func (w discordBotsGGOwnerWire) parse() (DiscordBotsGGOwner, error) {
	id, err := parseSnowflake("userId", w.UserID)
	if err != nil {
		return DiscordBotsGGOwner{}, err
	}
	return DiscordBotsGGOwner{UserID: id, Username: w.Username, Discriminator: w.Discriminator}, nil
}

// DiscordBotsGGBot is a bot listing returned by discord.bots.gg.
type DiscordBotsGGBot struct {
	UserID           uint64                `json:"user_id"`
	ClientID         uint64                `json:"client_id"`
	Username         string                `json:"username"`
	Discriminator    string                `json:"discriminator"`
	AvatarURL        string                `json:"avatar_url"`
	Owner            DiscordBotsGGOwner    `json:"owner"`
	CoOwners         []DiscordBotsGGOwner  `json:"co_owners"`
	Prefix           string                `json:"prefix"`
	HelpCommand      string                `json:"help_command"`
	LibraryName      string                `json:"library_name"`
	Website          core.Optional[string] `json:"website"`
	SupportInvite    core.Optional[string] `json:"support_invite"`
	BotInvite        core.Optional[string] `json:"bot_invite"`
	ShortDescription string                `json:"short_description"`
	LongDescription  core.Optional[string] `json:"long_description"`
	OpenSource       core.Optional[string] `json:"open_source"`
	GuildCount       int                   `json:"guild_count"`
	ShardCount       int                   `json:"shard_count"`
	Verified         bool                  `json:"verified"`
	Online           bool                  `json:"online"`
	InGuild          bool                  `json:"in_guild"`
	AddedDate        time.Time             `json:"added_date"`
	Status           string                `json:"status"`
}

// NewDiscordBotsGGBot parses a discord.bots.gg bot object.
func NewDiscordBotsGGBot(raw json.RawMessage) (*DiscordBotsGGBot, error) {
	var wire struct {
		UserID           string                   `json:"userId"`
		ClientID         string                   `json:"clientId"`
		Username         string                   `json:"username"`
		Discriminator    string                   `json:"discriminator"`
		AvatarURL        string                   `json:"avatarURL"`
		Owner            discordBotsGGOwnerWire   `json:"owner"`
		CoOwners         []discordBotsGGOwnerWire `json:"coOwners"`
		Prefix           string                   `json:"prefix"`
		HelpCommand      string                   `json:"helpCommand"`
		LibraryName      string                   `json:"libraryName"`
		Website          core.Optional[string]    `json:"website"`
		SupportInvite    core.Optional[string]    `json:"supportInvite"`
		BotInvite        core.Optional[string]    `json:"botInvite"`
		ShortDescription string                   `json:"shortDescription"`
		LongDescription  core.Optional[string]    `json:"longDescription"`
		OpenSource       core.Optional[string]    `json:"openSource"`
		GuildCount       int                      `json:"guildCount"`
		ShardCount       int                      `json:"shardCount"`
		Verified         bool                     `json:"verified"`
		Online           bool                     `json:"online"`
		InGuild          bool                     `json:"inGuild"`
		AddedDate        string                   `json:"addedDate"`
		Status           string                   `json:"status"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("parse discord.bots.gg bot: %w", err)
	}

	userID, err := parseSnowflake("userId", wire.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse discord.bots.gg bot: %w", err)
	}
	var clientID uint64
	if strings.TrimSpace(wire.ClientID) != "" {
		if clientID, err = parseSnowflake("clientId", wire.ClientID); err != nil {
			return nil, fmt.Errorf("parse discord.bots.gg bot %d: %w", userID, err)
		}
	}
	if strings.TrimSpace(wire.Username) == "" {
		return nil, fmt.Errorf("parse discord.bots.gg bot %d: %w", userID, errMissingField("username"))
	}
	owner, err := wire.Owner.parse()
	if err != nil {
		return nil, fmt.Errorf("parse discord.bots.gg bot %d owner: %w", userID, err)
	}
	coOwners := make([]DiscordBotsGGOwner, 0, len(wire.CoOwners))
	for _, item := range wire.CoOwners {
		parsed, err := item.parse()
		if err != nil {
			return nil, fmt.Errorf("parse discord.bots.gg bot %d co-owner: %w", userID, err)
		}
		coOwners = append(coOwners, parsed)
	}
	added, err := parseTime("addedDate", wire.AddedDate)
	if err != nil {
		return nil, fmt.Errorf("parse discord.bots.gg bot %d: %w", userID, err)
	}

	return &DiscordBotsGGBot{
		UserID:           userID,
		ClientID:         clientID,
		Username:         wire.Username,
		Discriminator:    wire.Discriminator,
		AvatarURL:        wire.AvatarURL,
		Owner:            owner,
		CoOwners:         coOwners,
		Prefix:           wire.Prefix,
		HelpCommand:      wire.HelpCommand,
		LibraryName:      wire.LibraryName,
		Website:          nonEmpty(wire.Website),
		SupportInvite:    nonEmpty(wire.SupportInvite),
		BotInvite:        nonEmpty(wire.BotInvite),
		ShortDescription: wire.ShortDescription,
		LongDescription:  nonEmpty(wire.LongDescription),
		OpenSource:       nonEmpty(wire.OpenSource),
		GuildCount:       wire.GuildCount,
		ShardCount:       wire.ShardCount,
		Verified:         wire.Verified,
		Online:           wire.Online,
		InGuild:          wire.InGuild,
		AddedDate:        added,
		Status:           wire.Status,
	}, nil
}

func errMissingField(name string) error {
	return fmt.Errorf("missing required field %q", name)
}

func parseSnowflake(field, value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errMissingField(field)
	}
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: invalid snowflake %q", field, value)
	}
	return id, nil
}

func parseSnowflakes(field string, values []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(values))
	for _, value := range values {
		id, err := parseSnowflake(field, value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseTime(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errors.Join(fmt.Errorf("field %q: invalid timestamp %q", field, value), err)
	}
	return parsed.UTC(), nil
}

func nonEmpty(value core.Optional[string]) core.Optional[string] {
	if v, ok := value.Get(); !ok || strings.TrimSpace(v) == "" {
		return core.None[string]()
	}
	return value
}
