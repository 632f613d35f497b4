package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/TheMaster3558/toppy/internal/core"
)

// snowflake accepts ids sent either as JSON strings or bare numbers.
type snowflake uint64

func (s *snowflake) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid snowflake %s", data)
	}
	*s = snowflake(id)
	return nil
}

// MissingFieldError reports a required webhook field that was absent.
type MissingFieldError struct {
	Site  core.Site
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s webhook: missing required field %q", e.Site, e.Field)
}

type topggBody struct {
	Bot       *snowflake `json:"bot"`
	User      *snowflake `json:"user"`
	Type      string     `json:"type"`
	IsWeekend bool       `json:"isWeekend"`
	Query     string     `json:"query"`
}

type dblBody struct {
	Admin    bool       `json:"admin"`
	Avatar   string     `json:"avatar"`
	Username string     `json:"username"`
	ID       *snowflake `json:"id"`
}

type dbggBody struct {
	Secret   string     `json:"secret"`
	UserID   *snowflake `json:"userId"`
	BotID    *snowflake `json:"botId"`
	Username string     `json:"username"`
	Type     string     `json:"type"`
}

// ParseTopGGVote builds a payload from a Top.gg webhook body.
func ParseTopGGVote(raw []byte, receivedAt time.Time) (*core.VotePayload, error) {
	var body topggBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode %s webhook: %w", core.SiteTopGG, err)
	}
	if body.User == nil {
		return nil, &MissingFieldError{Site: core.SiteTopGG, Field: "user"}
	}
	if body.Bot == nil {
		return nil, &MissingFieldError{Site: core.SiteTopGG, Field: "bot"}
	}

	return &core.VotePayload{
		Site:       core.SiteTopGG,
		UserID:     uint64(*body.User),
		BotID:      core.Some(uint64(*body.Bot)),
		Type:       voteType(body.Type),
		IsWeekend:  body.IsWeekend,
		Query:      optionalString(body.Query),
		ReceivedAt: receivedAt.UTC(),
		Raw:        json.RawMessage(raw),
	}, nil
}

// ParseDiscordBotListVote builds a payload from a Discord Bot List webhook body.
func ParseDiscordBotListVote(raw []byte, receivedAt time.Time) (*core.VotePayload, error) {
	var body dblBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode %s webhook: %w", core.SiteDiscordBotList, err)
	}
	if body.ID == nil {
		return nil, &MissingFieldError{Site: core.SiteDiscordBotList, Field: "id"}
	}

	return &core.VotePayload{
		Site:       core.SiteDiscordBotList,
		UserID:     uint64(*body.ID),
		Type:       core.VoteTypeUpvote,
		Username:   optionalString(body.Username),
		Avatar:     optionalString(body.Avatar),
		Admin:      body.Admin,
		ReceivedAt: receivedAt.UTC(),
		Raw:        json.RawMessage(raw),
	}, nil
}

// ParseDiscordBotsGGVote builds a payload from a DiscordBotsGG webhook body
// and returns the secret it carried.
func ParseDiscordBotsGGVote(raw []byte, receivedAt time.Time) (*core.VotePayload, string, error) {
	var body dbggBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, "", fmt.Errorf("decode %s webhook: %w", core.SiteDiscordBotsGG, err)
	}
	if body.UserID == nil {
		return nil, body.Secret, &MissingFieldError{Site: core.SiteDiscordBotsGG, Field: "userId"}
	}

	payload := &core.VotePayload{
		Site:       core.SiteDiscordBotsGG,
		UserID:     uint64(*body.UserID),
		Type:       voteType(body.Type),
		Username:   optionalString(body.Username),
		ReceivedAt: receivedAt.UTC(),
		Raw:        json.RawMessage(raw),
	}
	if body.BotID != nil {
		payload.BotID = core.Some(uint64(*body.BotID))
	}
	return payload, body.Secret, nil
}

func voteType(value string) core.VoteType {
	if strings.EqualFold(value, string(core.VoteTypeTest)) {
		return core.VoteTypeTest
	}
	return core.VoteTypeUpvote
}

func optionalString(value string) core.Optional[string] {
	if value == "" {
		return core.None[string]()
	}
	return core.Some(value)
}
