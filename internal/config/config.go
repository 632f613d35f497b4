package config

import (
	"time"
)

// Config represents the complete application configuration.
// Layers, lowest precedence first:
// Layer 1: built-in defaults (Defaults)
// Layer 2: config file (--config or ~/.config/toppy/config.yaml)
// Layer 3: TOPPY_* environment variables and runtime overrides
type Config struct {
	Tokens    TokensConfig    `mapstructure:"tokens" yaml:"tokens"`
	Discord   DiscordConfig   `mapstructure:"discord" yaml:"discord"`
	AutoPost  AutoPostConfig  `mapstructure:"autopost" yaml:"autopost"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	Webhook   WebhookConfig   `mapstructure:"webhook" yaml:"webhook"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	VoteCache VoteCacheConfig `mapstructure:"vote_cache" yaml:"vote_cache"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Health    HealthConfig    `mapstructure:"health" yaml:"health"`
	Sentry    SentryConfig    `mapstructure:"sentry" yaml:"sentry"`

	// RateLimits overrides requests-per-window by site prefix and route
	// pattern, e.g. rate_limits.topgg./bots: 30.
	RateLimits      map[string]map[string]int `mapstructure:"rate_limits" yaml:"rate_limits"`
	RateLimitMargin float64                   `mapstructure:"rate_limit_margin" yaml:"rate_limit_margin"`
}

// TokensConfig holds the bot list API tokens. An empty token disables the site.
type TokensConfig struct {
	TopGG          string `mapstructure:"topgg" yaml:"topgg"`
	DiscordBotList string `mapstructure:"dbl" yaml:"dbl"`
	DiscordBotsGG  string `mapstructure:"dbgg" yaml:"dbgg"`
}

// DiscordConfig configures the gateway session used by `toppy run`.
type DiscordConfig struct {
	Token string `mapstructure:"token" yaml:"token"`
}

// AutoPostConfig controls the per-site schedulers.
type AutoPostConfig struct {
	// Enabled starts every configured site's scheduler when the host attaches.
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval         time.Duration `mapstructure:"interval" yaml:"interval"`
	PostShardCount   bool          `mapstructure:"post_shard_count" yaml:"post_shard_count"`
	FinalPostTimeout time.Duration `mapstructure:"final_post_timeout" yaml:"final_post_timeout"`
}

// HTTPConfig configures outbound bot list requests.
type HTTPConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`

	// BaseURLs overrides API roots by site prefix (topgg, dbl, dbgg).
	BaseURLs map[string]string `mapstructure:"base_urls" yaml:"base_urls"`
}

// WebhookConfig configures the vote receiver.
type WebhookConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Secrets by site prefix. An unset secret is generated at startup.
	Secrets map[string]string `mapstructure:"secrets" yaml:"secrets"`

	// DisableAuth lists site prefixes whose requests are not authenticated.
	DisableAuth []string `mapstructure:"disable_auth" yaml:"disable_auth"`

	ThrottleRate  float64 `mapstructure:"throttle_rate" yaml:"throttle_rate"`
	ThrottleBurst int     `mapstructure:"throttle_burst" yaml:"throttle_burst"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// VoteCacheConfig selects where received votes are kept.
type VoteCacheConfig struct {
	// Backend is one of none, sql, json, redis.
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Dir holds votes.json and the SQL sequence file.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// StoreConfig contains database configuration for the SQL vote cache.
type StoreConfig struct {
	// Driver is libsql or sqlite.
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Path      string `mapstructure:"path" yaml:"path"`
	URL       string `mapstructure:"url" yaml:"url"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`
}

// RedisConfig configures the Redis vote cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile" yaml:"profile"`

	// Format is console or json for library loggers.
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string  `mapstructure:"dsn" yaml:"dsn"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}
