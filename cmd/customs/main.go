// Command customs refreshes the customs declaration report: it checks the
// published classification table, re-ingests it when newer, and loads the
// enriched declaration counts into PostgreSQL.
package main

import (
	"log/slog"
	"os"

	"github.com/JonMunkholm/customs/internal/config"
	"github.com/JonMunkholm/customs/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// configFree lists commands that run without loading configuration.
var configFree = map[string]bool{
	"version":                       true,
	"help":                          true,
	"completion":                    true,
	cobra.ShellCompRequestCmd:       true,
	cobra.ShellCompNoDescRequestCmd: true,
}

// needsConfig reports whether cmd or any of its parents requires configuration.
func needsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if configFree[c.Name()] {
			return false
		}
	}
	return true
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config
	var envFile string

	var cmdRoot = &cobra.Command{
		Use:   "customs",
		Short: "customs declaration enrichment pipeline",
		Long:  `Refresh the goods classification table and load enriched declaration counts`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsConfig(cmd) {
				return nil
			}

			// Load .env file if it exists (Overload overwrites existing env vars)
			if err := godotenv.Overload(envFile); err != nil {
				slog.Debug("no .env file found, using environment variables", "file", envFile)
			}

			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded

			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			slog.Debug("configuration loaded", "config", cfg.String())
			return nil
		},
	}
	cmdRoot.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load before reading configuration")

	getConfig := func() *config.Config { return cfg }
	cmdRoot.AddCommand(cmdRun(getConfig))
	cmdRoot.AddCommand(cmdServe(getConfig))
	cmdRoot.AddCommand(cmdWatermark(getConfig))
	cmdRoot.AddCommand(cmdVersion())
	return cmdRoot
}
