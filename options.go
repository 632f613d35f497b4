package toppy

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/engine"
)

// DefaultHTTPTimeout bounds each outbound API call when no client is supplied.
const DefaultHTTPTimeout = 10 * time.Second

// Options configures a Client. Sites without a token are skipped.
type Options struct {
	TopGGToken          string
	DiscordBotListToken string
	DiscordBotsGGToken  string

	// AutoPost starts every site's scheduler when the client is attached.
	AutoPost         bool
	Interval         time.Duration
	FinalPostTimeout time.Duration
	PostShardCount   bool

	HTTPClient *http.Client
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string

	// BaseURLs and RateLimits are keyed by site. RateLimits maps a route
	// pattern such as "/bots" to requests per window.
	BaseURLs        map[Site]string
	RateLimits      map[Site]map[string]int
	RateLimitMargin float64

	Logger *zap.Logger
}

// OptionsFromConfig maps loaded configuration onto client options.
func OptionsFromConfig(cfg *config.Config, logger *zap.Logger) (Options, error) {
	opts := Options{
		TopGGToken:          cfg.Tokens.TopGG,
		DiscordBotListToken: cfg.Tokens.DiscordBotList,
		DiscordBotsGGToken:  cfg.Tokens.DiscordBotsGG,
		AutoPost:            cfg.AutoPost.Enabled,
		Interval:            cfg.AutoPost.Interval,
		FinalPostTimeout:    cfg.AutoPost.FinalPostTimeout,
		PostShardCount:      cfg.AutoPost.PostShardCount,
		Timeout:             cfg.HTTP.Timeout,
		MaxRetries:          cfg.HTTP.MaxRetries,
		RateLimitMargin:     cfg.RateLimitMargin,
		Logger:              logger,
	}

	if len(cfg.HTTP.BaseURLs) > 0 {
		opts.BaseURLs = make(map[Site]string, len(cfg.HTTP.BaseURLs))
		for name, url := range cfg.HTTP.BaseURLs {
			site, err := core.ParseSite(name)
			if err != nil {
				return Options{}, err
			}
			opts.BaseURLs[site] = url
		}
	}
	if len(cfg.RateLimits) > 0 {
		opts.RateLimits = make(map[Site]map[string]int, len(cfg.RateLimits))
		for name, limits := range cfg.RateLimits {
			site, err := core.ParseSite(name)
			if err != nil {
				return Options{}, err
			}
			opts.RateLimits[site] = limits
		}
	}
	return opts, nil
}

func (o Options) token(site Site) string {
	switch site {
	case SiteTopGG:
		return o.TopGGToken
	case SiteDiscordBotList:
		return o.DiscordBotListToken
	case SiteDiscordBotsGG:
		return o.DiscordBotsGGToken
	default:
		return ""
	}
}

func (o Options) interval() time.Duration {
	if o.Interval <= 0 {
		return engine.DefaultInterval
	}
	return o.Interval
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}
