package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Scrape.CommentsPerPage < 1 {
		return fmt.Errorf("scrape.comments_per_page must be >= 1, got %d", cfg.Scrape.CommentsPerPage)
	}
	if cfg.Scrape.MaxBlockedRetries < 0 {
		return fmt.Errorf("scrape.max_blocked_retries must be >= 0, got %d", cfg.Scrape.MaxBlockedRetries)
	}
	for name, rule := range map[string]SelectorRule{
		"comment":    cfg.Scrape.Selectors.Comment,
		"header":     cfg.Scrape.Selectors.Header,
		"body":       cfg.Scrape.Selectors.Body,
		"pagination": cfg.Scrape.Selectors.Pagination,
		"vote":       cfg.Scrape.Selectors.VoteButton,
	} {
		if rule.Expr == "" {
			return fmt.Errorf("scrape.selectors.%s.expr must not be empty", name)
		}
		if rule.Type != "" && rule.Type != "css" && rule.Type != "xpath" {
			return fmt.Errorf("scrape.selectors.%s.type must be 'css' or 'xpath', got %q", name, rule.Type)
		}
	}

	if cfg.Pacing.BaseInterval < 0 {
		return fmt.Errorf("pacing.base_interval must be >= 0")
	}
	if cfg.Pacing.MinInterval < 0 || cfg.Pacing.MaxInterval < cfg.Pacing.MinInterval {
		return fmt.Errorf("pacing interval bounds must satisfy 0 <= min <= max, got [%v, %v]",
			cfg.Pacing.MinInterval, cfg.Pacing.MaxInterval)
	}
	if cfg.Pacing.MaxExtraDelay < 0 {
		return fmt.Errorf("pacing.max_extra_delay must be >= 0")
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Handshake.Enabled {
		if cfg.Handshake.PollInterval <= 0 {
			return fmt.Errorf("handshake.poll_interval must be > 0")
		}
		if cfg.Handshake.MaxCloseAttempts < 1 {
			return fmt.Errorf("handshake.max_close_attempts must be >= 1, got %d", cfg.Handshake.MaxCloseAttempts)
		}
	}

	switch cfg.Settings.Backend {
	case "file":
		if cfg.Settings.Path == "" {
			return fmt.Errorf("settings.path is required for the file backend")
		}
	case "mongodb":
		if cfg.Settings.MongoURI == "" {
			return fmt.Errorf("settings.mongo_uri is required for the mongodb backend")
		}
	default:
		return fmt.Errorf("settings.backend must be 'file' or 'mongodb', got %q", cfg.Settings.Backend)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	if cfg.Server.RequestsPerSecond <= 0 || cfg.Server.Burst < 1 {
		return fmt.Errorf("server rate limit needs requests_per_second > 0 and burst >= 1")
	}

	return nil
}

// ValidateURL checks if a URL string is a scrapeable feed page.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// OriginOf returns the scheme://host key runs are serialized on.
func OriginOf(rawURL string) (string, error) {
	if err := ValidateURL(rawURL); err != nil {
		return "", err
	}
	u, _ := url.Parse(rawURL)
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}
