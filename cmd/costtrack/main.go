// Package main is the entrypoint for the costtrack binary.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/costtrack/costtrack/internal/config"
	"github.com/costtrack/costtrack/internal/logging"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "costtrack",
	Short:             "Personal cost tracking API",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			slog.Error("failed to load config", "error", err)
			return err
		}

		logger = logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(logger)
		return nil
	},
}

func main() {
	rootCmd.Version = version
	rootCmd.AddCommand(serveCmd, startCmd, migrateCmd, createUserCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
