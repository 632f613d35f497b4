// Package config provides centralized configuration management for toppy.
// It implements a three-layer config pattern:
// Layer 1: built-in defaults
// Layer 2: user config file (viper; YAML, JSON or TOML)
// Layer 3: environment variables (gofulmen/config) and runtime overrides
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// AppName names config, data and cache directories.
	AppName = "toppy"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TOPPY_"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Defaults returns the built-in configuration layer.
func Defaults() map[string]any {
	return map[string]any{
		"tokens": map[string]any{
			"topgg": "",
			"dbl":   "",
			"dbgg":  "",
		},
		"discord": map[string]any{
			"token": "",
		},
		"autopost": map[string]any{
			"enabled":            true,
			"interval":           "10m",
			"post_shard_count":   false,
			"final_post_timeout": "15s",
		},
		"http": map[string]any{
			"timeout":     "10s",
			"max_retries": 1,
			"base_urls":   map[string]any{},
		},
		"webhook": map[string]any{
			"enabled":        false,
			"secrets":        map[string]any{},
			"disable_auth":   []any{},
			"throttle_rate":  20.0,
			"throttle_burst": 40,
		},
		"server": map[string]any{
			"host":             "0.0.0.0",
			"port":             8080,
			"read_timeout":     "30s",
			"write_timeout":    "30s",
			"idle_timeout":     "120s",
			"shutdown_timeout": "10s",
		},
		"vote_cache": map[string]any{
			"backend": "none",
			"dir":     "",
		},
		"store": map[string]any{
			"driver":     "sqlite",
			"path":       "",
			"url":        "",
			"auth_token": "",
		},
		"redis": map[string]any{
			"addr":     "localhost:6379",
			"password": "",
			"db":       0,
			"prefix":   "toppy",
		},
		"logging": map[string]any{
			"level":   "info",
			"profile": "SIMPLE",
			"format":  "console",
		},
		"metrics": map[string]any{
			"enabled": true,
		},
		"health": map[string]any{
			"enabled": true,
		},
		"sentry": map[string]any{
			"dsn":         "",
			"environment": "production",
			"sample_rate": 1.0,
		},
		"rate_limits":       map[string]any{},
		"rate_limit_margin": 1.0,
	}
}

// Load loads configuration from the default file locations.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", runtimeOverrides...)
}

// LoadFile loads configuration using the three-layer pattern. An explicit
// path must exist; otherwise the XDG config paths are searched.
func LoadFile(ctx context.Context, path string, runtimeOverrides ...map[string]any) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := Defaults()

	fileLayer, _, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	mergeMaps(merged, fileLayer)

	// Load environment variable overrides
	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if value := strings.TrimSpace(os.Getenv(EnvPrefix + "RATE_LIMIT_MARGIN")); value != "" {
		margin, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit margin: %w", err)
		}
		envOverrides["rate_limit_margin"] = margin
	}
	mergeMaps(merged, envOverrides)

	for _, overrides := range runtimeOverrides {
		mergeMaps(merged, overrides)
	}

	// Unmarshal into typed config struct
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if strings.TrimSpace(cfg.VoteCache.Dir) == "" {
		cfg.VoteCache.Dir = DefaultCacheDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store the loaded config
	setConfig(cfg)

	return cfg, nil
}

// Validate rejects settings that cannot work together.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.VoteCache.Backend)) {
	case "", "none", "sql", "json", "redis":
	default:
		return fmt.Errorf("invalid vote_cache.backend %q (want none, sql, json or redis)", c.VoteCache.Backend)
	}
	if c.RateLimitMargin < 0 || c.RateLimitMargin > 1 {
		return fmt.Errorf("invalid rate_limit_margin %v (want a ratio in (0, 1])", c.RateLimitMargin)
	}
	if c.AutoPost.Interval < 0 {
		return errors.New("autopost.interval must not be negative")
	}
	return nil
}

// UsedConfigFile returns the config file the loader would read, or "" when none exists.
func UsedConfigFile(path string) string {
	_, used, err := readConfigFile(path)
	if err != nil {
		return ""
	}
	return used
}

func readConfigFile(path string) (map[string]any, string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = discoverConfigFile()
		if path == "" {
			return map[string]any{}, "", nil
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, "", fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return v.AllSettings(), v.ConfigFileUsed(), nil
}

func discoverConfigFile() string {
	for _, candidate := range getUserConfigPaths() {
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			return candidate
		}
		for _, name := range []string{"config.yaml", "config.yml", "config.json", "config.toml"} {
			file := filepath.Join(candidate, name)
			if _, err := os.Stat(file); err == nil {
				return file
			}
		}
	}
	return ""
}

// mergeMaps deep-merges src into dst; src wins.
func mergeMaps(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMaps(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// getUserConfigPaths returns the list of user config file paths to check
// Uses gofulmen/config for XDG-compliant path discovery
func getUserConfigPaths() []string {
	return gfconfig.GetAppConfigPaths(AppName)
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps {PREFIX}{NAME} environment variables to config paths
func getEnvSpecs() []EnvVarSpec {
	prefix := EnvPrefix

	return []EnvVarSpec{
		// Site tokens
		{Name: prefix + "TOPGG_TOKEN", Path: []string{"tokens", "topgg"}, Type: EnvString},
		{Name: prefix + "DBL_TOKEN", Path: []string{"tokens", "dbl"}, Type: EnvString},
		{Name: prefix + "DBGG_TOKEN", Path: []string{"tokens", "dbgg"}, Type: EnvString},
		{Name: prefix + "DISCORD_TOKEN", Path: []string{"discord", "token"}, Type: EnvString},

		// Auto-post
		{Name: prefix + "AUTOPOST_ENABLED", Path: []string{"autopost", "enabled"}, Type: EnvBool},
		{Name: prefix + "AUTOPOST_INTERVAL", Path: []string{"autopost", "interval"}, Type: EnvString},
		{Name: prefix + "POST_SHARD_COUNT", Path: []string{"autopost", "post_shard_count"}, Type: EnvBool},

		// Outbound HTTP
		{Name: prefix + "HTTP_TIMEOUT", Path: []string{"http", "timeout"}, Type: EnvString},
		{Name: prefix + "HTTP_MAX_RETRIES", Path: []string{"http", "max_retries"}, Type: EnvInt},

		// Webhooks
		{Name: prefix + "WEBHOOK_ENABLED", Path: []string{"webhook", "enabled"}, Type: EnvBool},
		{Name: prefix + "TOPGG_WEBHOOK_SECRET", Path: []string{"webhook", "secrets", "topgg"}, Type: EnvString},
		{Name: prefix + "DBL_WEBHOOK_SECRET", Path: []string{"webhook", "secrets", "dbl"}, Type: EnvString},
		{Name: prefix + "DBGG_WEBHOOK_SECRET", Path: []string{"webhook", "secrets", "dbgg"}, Type: EnvString},
		{Name: prefix + "WEBHOOK_DISABLE_AUTH", Path: []string{"webhook", "disable_auth"}, Type: EnvString},

		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		// Logging config
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},
		{Name: prefix + "LOG_FORMAT", Path: []string{"logging", "format"}, Type: EnvString},

		// Vote cache
		{Name: prefix + "VOTE_CACHE", Path: []string{"vote_cache", "backend"}, Type: EnvString},
		{Name: prefix + "VOTE_CACHE_DIR", Path: []string{"vote_cache", "dir"}, Type: EnvString},
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},
		{Name: prefix + "REDIS_ADDR", Path: []string{"redis", "addr"}, Type: EnvString},
		{Name: prefix + "REDIS_PASSWORD", Path: []string{"redis", "password"}, Type: EnvString},
		{Name: prefix + "REDIS_DB", Path: []string{"redis", "db"}, Type: EnvInt},

		// Metrics, health, error reporting
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},
		{Name: prefix + "SENTRY_DSN", Path: []string{"sentry", "dsn"}, Type: EnvString},
		{Name: prefix + "SENTRY_ENVIRONMENT", Path: []string{"sentry", "environment"}, Type: EnvString},
	}
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(AppName)
}

// DefaultCacheDir returns the XDG-compliant cache directory for the app.
func DefaultCacheDir() string {
	dir := gfconfig.GetAppCacheDir(AppName)
	if strings.TrimSpace(dir) == "" {
		return "."
	}
	return dir
}

// DefaultStorePath returns the XDG-compliant path to the vote database.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

// WriteDefaults writes the default layer as YAML. An existing file is kept
// unless force is set.
func WriteDefaults(path string, force bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("config path is required")
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}

	// #nosec G301 -- config directories use 0755 like other XDG dirs
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	// Tokens end up in this file.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
