package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("COMMENTGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("commentgoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".commentgoat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("scrape.comments_per_page", cfg.Scrape.CommentsPerPage)
	v.SetDefault("scrape.max_blocked_retries", cfg.Scrape.MaxBlockedRetries)
	for name, rule := range map[string]SelectorRule{
		"comment":    cfg.Scrape.Selectors.Comment,
		"header":     cfg.Scrape.Selectors.Header,
		"body":       cfg.Scrape.Selectors.Body,
		"pagination": cfg.Scrape.Selectors.Pagination,
		"vote":       cfg.Scrape.Selectors.VoteButton,
	} {
		v.SetDefault("scrape.selectors."+name+".expr", rule.Expr)
		v.SetDefault("scrape.selectors."+name+".type", rule.Type)
	}

	v.SetDefault("pacing.base_interval", cfg.Pacing.BaseInterval)
	v.SetDefault("pacing.min_interval", cfg.Pacing.MinInterval)
	v.SetDefault("pacing.max_interval", cfg.Pacing.MaxInterval)
	v.SetDefault("pacing.max_extra_delay", cfg.Pacing.MaxExtraDelay)

	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)

	v.SetDefault("handshake.enabled", cfg.Handshake.Enabled)
	v.SetDefault("handshake.headless", cfg.Handshake.Headless)
	v.SetDefault("handshake.stealth", cfg.Handshake.Stealth)
	v.SetDefault("handshake.poll_interval", cfg.Handshake.PollInterval)
	v.SetDefault("handshake.max_close_attempts", cfg.Handshake.MaxCloseAttempts)
	v.SetDefault("handshake.like_label", cfg.Handshake.LikeLabel)
	v.SetDefault("handshake.dislike_label", cfg.Handshake.DislikeLabel)

	v.SetDefault("settings.backend", cfg.Settings.Backend)
	v.SetDefault("settings.path", cfg.Settings.Path)
	v.SetDefault("settings.database", cfg.Settings.Database)
	v.SetDefault("settings.collection", cfg.Settings.Collection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.mode", cfg.Server.Mode)
	v.SetDefault("server.requests_per_second", cfg.Server.RequestsPerSecond)
	v.SetDefault("server.burst", cfg.Server.Burst)
	v.SetDefault("server.output_dir", cfg.Server.OutputDir)
}
