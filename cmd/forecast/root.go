package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/stockcast/internal/app"
	"github.com/timmy/stockcast/internal/config"
	"github.com/timmy/stockcast/internal/logger"
)

const closeTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Run and inspect bulk stock forecasts",
	Long: `forecast drives the bulk forecast orchestrator from the command line.

It uses the same configuration as the API server. The config file is taken
from --config, then CONFIG_PATH, then ./configs/config.yaml.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
}

// openApp loads configuration and wires the application. Logs go to stderr
// so stdout carries only command output.
func openApp(cmd *cobra.Command) (*app.App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	level, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(&logger.Config{
		Level:       level,
		Format:      "text",
		Output:      cmd.ErrOrStderr(),
		ServiceName: "stockcast-cli",
	})
	logger.SetDefaultLogger(log)

	return app.New(cmdContext(cmd), cfg, log)
}

func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_ = a.Close(ctx)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
