package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for commentgoat.
type Config struct {
	Scrape    ScrapeConfig    `mapstructure:"scrape"    yaml:"scrape"`
	Pacing    PacingConfig    `mapstructure:"pacing"    yaml:"pacing"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"   yaml:"fetcher"`
	Handshake HandshakeConfig `mapstructure:"handshake" yaml:"handshake"`
	Settings  SettingsConfig  `mapstructure:"settings"  yaml:"settings"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
	Server    ServerConfig    `mapstructure:"server"    yaml:"server"`
}

// ScrapeConfig controls the page loop and the page layout it expects.
type ScrapeConfig struct {
	CommentsPerPage   int       `mapstructure:"comments_per_page"   yaml:"comments_per_page"`
	MaxBlockedRetries int       `mapstructure:"max_blocked_retries" yaml:"max_blocked_retries"`
	Selectors         Selectors `mapstructure:"selectors"           yaml:"selectors"`
}

// Selectors locate the parts of a comment page.
type Selectors struct {
	Comment    SelectorRule `mapstructure:"comment"    yaml:"comment"`
	Header     SelectorRule `mapstructure:"header"     yaml:"header"`
	Body       SelectorRule `mapstructure:"body"       yaml:"body"`
	Pagination SelectorRule `mapstructure:"pagination" yaml:"pagination"`
	VoteButton SelectorRule `mapstructure:"vote"       yaml:"vote"`
}

// SelectorRule is a single CSS or XPath expression.
type SelectorRule struct {
	Expr string `mapstructure:"expr" yaml:"expr"`
	Type string `mapstructure:"type" yaml:"type"` // css, xpath
}

// PacingConfig holds the delay bounds, in seconds. The randomization
// switches live in the settings store.
type PacingConfig struct {
	BaseInterval  float64 `mapstructure:"base_interval"   yaml:"base_interval"`
	MinInterval   float64 `mapstructure:"min_interval"    yaml:"min_interval"`
	MaxInterval   float64 `mapstructure:"max_interval"    yaml:"max_interval"`
	MaxExtraDelay float64 `mapstructure:"max_extra_delay" yaml:"max_extra_delay"`
}

// FetcherConfig controls the page fetcher.
type FetcherConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
}

// HandshakeConfig controls the auxiliary vote tab.
type HandshakeConfig struct {
	Enabled          bool          `mapstructure:"enabled"            yaml:"enabled"`
	Headless         bool          `mapstructure:"headless"           yaml:"headless"`
	Stealth          bool          `mapstructure:"stealth"            yaml:"stealth"`
	BrowserBin       string        `mapstructure:"browser_bin"        yaml:"browser_bin"`
	PollInterval     time.Duration `mapstructure:"poll_interval"      yaml:"poll_interval"`
	MaxCloseAttempts int           `mapstructure:"max_close_attempts" yaml:"max_close_attempts"`
	LikeLabel        string        `mapstructure:"like_label"         yaml:"like_label"`
	DislikeLabel     string        `mapstructure:"dislike_label"      yaml:"dislike_label"`
}

// SettingsConfig selects the backend of the flag store.
type SettingsConfig struct {
	Backend    string `mapstructure:"backend"    yaml:"backend"` // file, mongodb
	Path       string `mapstructure:"path"       yaml:"path"`
	MongoURI   string `mapstructure:"mongo_uri"  yaml:"mongo_uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// ServerConfig controls the trigger API.
type ServerConfig struct {
	Addr              string  `mapstructure:"addr"                yaml:"addr"`
	Mode              string  `mapstructure:"mode"                yaml:"mode"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst"               yaml:"burst"`
	OutputDir         string  `mapstructure:"output_dir"          yaml:"output_dir"`
}

// DefaultSelectors returns the selectors of the comment board layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Comment:    SelectorRule{Expr: "div.comment-container", Type: "css"},
		Header:     SelectorRule{Expr: "div.comment_info", Type: "css"},
		Body:       SelectorRule{Expr: "p.comment_body", Type: "css"},
		Pagination: SelectorRule{Expr: "ul.pagination", Type: "css"},
		VoteButton: SelectorRule{Expr: "button.vote-submit", Type: "css"},
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			CommentsPerPage:   20,
			MaxBlockedRetries: 3,
			Selectors:         DefaultSelectors(),
		},
		Pacing: PacingConfig{
			BaseInterval:  2,
			MinInterval:   1,
			MaxInterval:   3,
			MaxExtraDelay: 5,
		},
		Fetcher: FetcherConfig{
			RequestTimeout:  30 * time.Second,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    10,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Handshake: HandshakeConfig{
			Enabled:          true,
			Headless:         true,
			Stealth:          true,
			PollInterval:     time.Second,
			MaxCloseAttempts: 10,
			LikeLabel:        "好き",
			DislikeLabel:     "嫌い",
		},
		Settings: SettingsConfig{
			Backend:    "file",
			Path:       "./commentgoat-settings.json",
			Database:   "commentgoat",
			Collection: "settings",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			Mode:              "release",
			RequestsPerSecond: 1,
			Burst:             3,
			OutputDir:         "./output",
		},
	}
}
