package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TheMaster3558/toppy/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the toppy config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the built-in defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		if strings.TrimSpace(path) == "" {
			path = config.DefaultConfigPath()
		}
		force, _ := cmd.Flags().GetBool("force")
		if err := config.WriteDefaults(path, force); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file toppy would read",
	RunE: func(cmd *cobra.Command, args []string) error {
		used := config.UsedConfigFile(cfgFile)
		if used == "" {
			used = "(none; defaults and environment only)"
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), used)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configPathCmd)

	configInitCmd.Flags().String("path", "", "destination (default is $XDG_CONFIG_HOME/toppy/config.yaml)")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
