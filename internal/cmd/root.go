package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/observability"
)

var (
	cfgFile string
	verbose bool
	envFile string

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Post Discord bot stats to Top.gg, Discord Bot List and DiscordBotsGG",
	Long: `toppy keeps a Discord bot's server count up to date on Top.gg,
Discord Bot List and discord.bots.gg, receives their vote webhooks, and
queries their APIs.

Tokens and settings come from the config file, TOPPY_* environment
variables (a .env file is read when present) and flags, in that order.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/toppy/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig loads the dotenv file and the CLI logger. The typed config is
// read per command by loadConfig, after flags are parsed.
func initConfig() {
	observability.InitCLILogger(config.AppName, verbose)

	if path := strings.TrimSpace(envFile); path != "" {
		if err := godotenv.Load(path); err == nil {
			observability.CLILogger.Debug("Loaded environment file", zap.String("path", path))
		}
	}
}

// overrideKeys are the config paths a command flag may set through viper.
var overrideKeys = []string{
	"server.host",
	"server.port",
	"webhook.enabled",
	"vote_cache.backend",
	"vote_cache.dir",
	"autopost.enabled",
	"autopost.interval",
	"logging.level",
}

// loadConfig reads the layered config with changed flags as the runtime layer.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.LoadFile(ctx, cfgFile, runtimeOverrides())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if used := config.UsedConfigFile(cfgFile); used != "" {
		observability.CLILogger.Debug("Using config file", zap.String("path", used))
	}
	return cfg, nil
}

func runtimeOverrides() map[string]any {
	overrides := make(map[string]any)
	for _, key := range overrideKeys {
		if !viper.IsSet(key) {
			continue
		}
		setPath(overrides, strings.Split(key, "."), viper.Get(key))
	}
	return overrides
}

func setPath(dst map[string]any, path []string, value any) {
	for _, part := range path[:len(path)-1] {
		next, ok := dst[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			dst[part] = next
		}
		dst = next
	}
	dst[path[len(path)-1]] = value
}
