package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/commentgoat/internal/config"
	"github.com/IshaanNene/commentgoat/internal/settings"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "commentgoat",
		Short: "Paginated comment scraper and exporter",
		Long: `commentgoat walks a paginated comment board and exports every comment as
plain text, stopping by page count, by age window, or at the end of the feed.

Features:
  • Page-count, age-window and unbounded export runs
  • Vote-gated pages cleared through a browser tab handshake
  • Randomized pacing between page fetches
  • Preloading the next 20 or 100 comments
  • Persistent feature flags in a JSON file or MongoDB
  • HTTP trigger API and Prometheus metrics`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(saveCmd())
	rootCmd.AddCommand(preloadCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// logLevel is the effective level: the configured level, overridden by the
// logging flags when they are known, and by --verbose.
func logLevel(cfg *config.LoggingConfig, snap *settings.Snapshot) slog.Level {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if snap != nil {
		switch {
		case snap.DebugLogging:
			level = slog.LevelDebug
		case !snap.EnableLogging:
			level = slog.LevelError
		}
	}
	if verbose {
		level = slog.LevelDebug
	}
	return level
}

// setupLogger creates a structured logger. The returned LevelVar lets the
// caller raise or lower the level once the settings store is readable.
func setupLogger(cfg *config.LoggingConfig) (*slog.Logger, *slog.LevelVar) {
	var out io.Writer = os.Stderr
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			out = f
		}
	}

	lvl := new(slog.LevelVar)
	lvl.Set(logLevel(cfg, nil))

	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl})), lvl
	}

	handler := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		Level:           charmlog.DebugLevel,
	})
	return slog.New(&levelHandler{Handler: handler, level: lvl}), lvl
}

// levelHandler gates a handler on a LevelVar.
type levelHandler struct {
	slog.Handler
	level *slog.LevelVar
}

func (h *levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("commentgoat %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("Scrape:\n")
			fmt.Printf("  Comments Per Page:  %d\n", cfg.Scrape.CommentsPerPage)
			fmt.Printf("  Max Blocked:        %d\n", cfg.Scrape.MaxBlockedRetries)
			fmt.Printf("  Comment Selector:   %s (%s)\n", cfg.Scrape.Selectors.Comment.Expr, cfg.Scrape.Selectors.Comment.Type)
			fmt.Printf("\nPacing:\n")
			fmt.Printf("  Base Interval:      %.2fs\n", cfg.Pacing.BaseInterval)
			fmt.Printf("  Random Interval:    %.2fs - %.2fs\n", cfg.Pacing.MinInterval, cfg.Pacing.MaxInterval)
			fmt.Printf("  Max Extra Delay:    %.2fs\n", cfg.Pacing.MaxExtraDelay)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Request Timeout:    %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  Max Body Size:      %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("  User Agents:        %d configured\n", len(cfg.Fetcher.UserAgents))
			fmt.Printf("\nHandshake:\n")
			fmt.Printf("  Enabled:            %v\n", cfg.Handshake.Enabled)
			fmt.Printf("  Headless:           %v\n", cfg.Handshake.Headless)
			fmt.Printf("  Poll Interval:      %s\n", cfg.Handshake.PollInterval)
			fmt.Printf("  Max Close Attempts: %d\n", cfg.Handshake.MaxCloseAttempts)
			fmt.Printf("\nSettings:\n")
			fmt.Printf("  Backend:            %s\n", cfg.Settings.Backend)
			if cfg.Settings.Backend == "mongodb" {
				fmt.Printf("  Database:           %s.%s\n", cfg.Settings.Database, cfg.Settings.Collection)
			} else {
				fmt.Printf("  Path:               %s\n", cfg.Settings.Path)
			}
			fmt.Printf("\nServer:\n")
			fmt.Printf("  Addr:               %s\n", cfg.Server.Addr)
			fmt.Printf("  Rate Limit:         %.1f req/s (burst %d)\n", cfg.Server.RequestsPerSecond, cfg.Server.Burst)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:            %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:               %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}
