// Package main provides the jobharvest command line: one-shot harvests that
// write CSV/JSONL files, and an HTTP server exposing the same runs.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/use-agent/jobharvest/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "jobharvest",
	Short: "Glints job listing harvester",
	Long: `jobharvest opens the Glints explore page for each keyword, scrolls the job list
until no new cards render, and extracts every card into normalized records.

Configuration is read from --config (or JOBHARVEST_CONFIG), then JOBHARVEST_* environment
variables, then command-line flags.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (defaults to JOBHARVEST_CONFIG)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the config file from --config or the environment.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("JOBHARVEST_CONFIG")
	}
	return config.LoadFile(path)
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
