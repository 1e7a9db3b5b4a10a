package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"per page":        func(c *Config) { c.Scrape.CommentsPerPage = 0 },
		"interval bounds": func(c *Config) { c.Pacing.MinInterval, c.Pacing.MaxInterval = 3, 1 },
		"selector type":   func(c *Config) { c.Scrape.Selectors.Body.Type = "regex" },
		"empty selector":  func(c *Config) { c.Scrape.Selectors.Header.Expr = "" },
		"close attempts":  func(c *Config) { c.Handshake.MaxCloseAttempts = 0 },
		"backend":         func(c *Config) { c.Settings.Backend = "redis" },
		"mongo uri":       func(c *Config) { c.Settings.Backend = "mongodb" },
		"log level":       func(c *Config) { c.Logging.Level = "trace" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://board.example.com/comments/1"))
	assert.Error(t, ValidateURL("ftp://board.example.com"))
	assert.Error(t, ValidateURL("https://"))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "commentgoat.yaml")
	yaml := `
scrape:
  comments_per_page: 50
pacing:
  base_interval: 0.5
handshake:
  poll_interval: 250ms
settings:
  backend: file
  path: /tmp/flags.json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Scrape.CommentsPerPage)
	assert.Equal(t, 0.5, cfg.Pacing.BaseInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Handshake.PollInterval)
	assert.Equal(t, "/tmp/flags.json", cfg.Settings.Path)
	// untouched sections keep their defaults
	assert.Equal(t, "div.comment-container", cfg.Scrape.Selectors.Comment.Expr)
	assert.Equal(t, 10, cfg.Handshake.MaxCloseAttempts)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestOriginOf(t *testing.T) {
	origin, err := OriginOf("HTTPS://Example.com/board/1?page=2")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", origin)

	_, err = OriginOf("ftp://example.com")
	assert.Error(t, err)
}
