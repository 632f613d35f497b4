package handlers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/core"
	apperrors "github.com/TheMaster3558/toppy/internal/errors"
	"github.com/TheMaster3558/toppy/internal/metrics"
)

const (
	// WebhookResponseBody is written for every accepted delivery.
	WebhookResponseBody = "toppy"

	maxWebhookBody = 1 << 20
)

// Secret is the shared secret for one site's webhook.
type Secret struct {
	Value     string
	Disabled  bool
	Generated bool
}

// Check reports whether the presented value authenticates the delivery.
func (s Secret) Check(presented string) bool {
	if s.Disabled {
		return true
	}
	if s.Value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.Value), []byte(presented)) == 1
}

// ResolveSecrets returns a secret for every site. Sites listed in
// DisableAuth skip the check; sites with no configured secret get a random
// 16-byte hex secret.
func ResolveSecrets(cfg config.WebhookConfig) (map[core.Site]Secret, error) {
	disabled := make(map[core.Site]bool, len(cfg.DisableAuth))
	for _, name := range cfg.DisableAuth {
		site, err := core.ParseSite(name)
		if err != nil {
			return nil, fmt.Errorf("webhook.disable_auth: %w", err)
		}
		disabled[site] = true
	}

	configured := make(map[core.Site]string, len(cfg.Secrets))
	for name, value := range cfg.Secrets {
		site, err := core.ParseSite(name)
		if err != nil {
			return nil, fmt.Errorf("webhook.secrets: %w", err)
		}
		configured[site] = value
	}

	secrets := make(map[core.Site]Secret, len(core.Sites))
	for _, site := range core.Sites {
		switch {
		case disabled[site]:
			secrets[site] = Secret{Disabled: true}
		case configured[site] != "":
			secrets[site] = Secret{Value: configured[site]}
		default:
			value, err := randomSecret()
			if err != nil {
				return nil, err
			}
			secrets[site] = Secret{Value: value, Generated: true}
		}
	}
	return secrets, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Webhook receives vote deliveries from the bot lists. Each server owns
// its own instance.
type Webhook struct {
	Host    core.Host
	Cache   core.VoteCache
	Secrets map[core.Site]Secret
	Logger  *zap.Logger
	Now     func() time.Time
}

// NewWebhook resolves secrets and logs the generated ones once.
func NewWebhook(host core.Host, cache core.VoteCache, cfg config.WebhookConfig, logger *zap.Logger) (*Webhook, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	secrets, err := ResolveSecrets(cfg)
	if err != nil {
		return nil, err
	}
	for _, site := range core.Sites {
		secret := secrets[site]
		switch {
		case secret.Disabled:
			logger.Warn("Webhook authentication disabled", zap.String("site", string(site)))
		case secret.Generated:
			logger.Info("Generated webhook secret",
				zap.String("site", string(site)),
				zap.String("secret", secret.Value))
		}
	}
	return &Webhook{Host: host, Cache: cache, Secrets: secrets, Logger: logger}, nil
}

// TopGG handles POST /topgg.
func (h *Webhook) TopGG(w http.ResponseWriter, r *http.Request) {
	h.headerAuthenticated(w, r, core.SiteTopGG, ParseTopGGVote)
}

// DiscordBotList handles POST /dbl.
func (h *Webhook) DiscordBotList(w http.ResponseWriter, r *http.Request) {
	h.headerAuthenticated(w, r, core.SiteDiscordBotList, ParseDiscordBotListVote)
}

// DiscordBotsGG handles POST /dbgg. The secret travels in the body.
func (h *Webhook) DiscordBotsGG(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	payload, secret, err := ParseDiscordBotsGGVote(body, h.now())
	var missing *MissingFieldError
	if err != nil && !stderrors.As(err, &missing) {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid webhook body"))
		return
	}
	if !h.secret(core.SiteDiscordBotsGG).Check(secret) {
		h.unauthorized(w, r, core.SiteDiscordBotsGG)
		return
	}
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid webhook body"))
		return
	}
	h.accept(w, r, payload)
}

type parseFunc func(raw []byte, receivedAt time.Time) (*core.VotePayload, error)

func (h *Webhook) headerAuthenticated(w http.ResponseWriter, r *http.Request, site core.Site, parse parseFunc) {
	if !h.secret(site).Check(r.Header.Get("Authorization")) {
		h.unauthorized(w, r, site)
		return
	}

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	payload, err := parse(body, h.now())
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid webhook body"))
		return
	}
	h.accept(w, r, payload)
}

func (h *Webhook) accept(w http.ResponseWriter, r *http.Request, payload *core.VotePayload) {
	site := payload.Site
	if h.Host != nil {
		h.Host.Dispatch(core.Event{Name: site.Event("vote"), Site: site, Vote: payload})
	}
	metrics.RecordVote(site.EventPrefix())

	if h.Cache != nil {
		// Already dispatched, so a cache failure still answers 200.
		if vote, err := h.Cache.Insert(r.Context(), payload); err != nil {
			envelope := apperrors.WrapVoteCache(r.Context(), site.EventPrefix(), err)
			h.logger().Error(envelope.Message,
				zap.String("error_code", envelope.Code),
				zap.String("severity", string(envelope.Severity)),
				zap.String("request_id", envelope.CorrelationID),
				zap.String("site", string(site)),
				zap.Uint64("user_id", payload.UserID),
				zap.Error(err))
			metrics.RecordError(envelope.Code, http.StatusOK)
		} else {
			h.logger().Debug("Cached vote",
				zap.String("site", string(site)),
				zap.Int64("number", vote.Number))
		}
	}

	render.Status(r, http.StatusOK)
	render.PlainText(w, r, WebhookResponseBody)
}

func (h *Webhook) unauthorized(w http.ResponseWriter, r *http.Request, site core.Site) {
	h.logger().Warn("Rejected webhook delivery", zap.String("site", string(site)))
	apperrors.RespondWithEnvelope(w, r, apperrors.WrapUnauthorized(r.Context(), site.EventPrefix(), "invalid webhook authorization"))
}

func (h *Webhook) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapInvalidInput(r.Context(), err, "unreadable webhook body"))
		return nil, false
	}
	return body, true
}

func (h *Webhook) secret(site core.Site) Secret {
	if secret, ok := h.Secrets[site]; ok {
		return secret
	}
	// An unknown site never authenticates.
	return Secret{}
}

func (h *Webhook) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Webhook) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
