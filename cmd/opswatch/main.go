package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opswatch/opswatch/internal/config"
	"github.com/opswatch/opswatch/internal/daemon"
	"github.com/opswatch/opswatch/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "opswatch",
	Short: "Fleet health monitoring and automation daemon",
	Long: `opswatch continuously verifies the health of external services
(source control, deployment platforms, payment processors, messaging,
AI providers), raises alerts when they degrade, and runs recurring
automation jobs.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "opswatch.yaml", "path to config file")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(alertCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config and builds the component graph. Commands that need
// the daemon call this and exit on failure.
func setup() (*config.Config, *slog.Logger, *daemon.Daemon) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	d, err := daemon.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, d
}
