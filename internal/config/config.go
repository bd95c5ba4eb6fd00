// Package config loads folio configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`

	// GitHub — PAT mode (simplest) or App mode (token minted per installation).
	// App mode wins when both are configured.
	GitHubToken          string `envconfig:"GITHUB_TOKEN"`
	GitHubAppID          int64  `envconfig:"GITHUB_APP_ID"`
	GitHubInstallationID int64  `envconfig:"GITHUB_INSTALLATION_ID"`
	GitHubPrivateKeyPath string `envconfig:"GITHUB_PRIVATE_KEY_PATH"`

	// Key-value store (Upstash-compatible REST). Falls back to in-memory
	// storage when unset — fine for development, data does not survive restarts.
	KVRestURL   string `envconfig:"KV_REST_API_URL"`
	KVRestToken string `envconfig:"KV_REST_API_TOKEN"`

	// Scheduled sync endpoint secret. The /api/v1/cron/sync route returns 500
	// when this is empty and 401 when the bearer token does not match.
	CronSecret string `envconfig:"CRON_SECRET"`

	// HTTP surface
	CORSOrigins    string `envconfig:"CORS_ORIGINS"`
	RateLimitRPS   int    `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int    `envconfig:"RATE_LIMIT_BURST" default:"100"`

	// Sync engine tuning
	SyncBatchSize  int           `envconfig:"SYNC_BATCH_SIZE" default:"5"`
	SyncBatchDelay time.Duration `envconfig:"SYNC_BATCH_DELAY" default:"1s"`
	SyncFreshness  time.Duration `envconfig:"SYNC_FRESHNESS" default:"24h"`
	SyncRateFloor  int           `envconfig:"SYNC_RATE_FLOOR" default:"100"`
	SyncInterval   time.Duration `envconfig:"SYNC_INTERVAL" default:"6h"`

	// Tracker
	TrackerReconcileInterval time.Duration `envconfig:"TRACKER_RECONCILE_INTERVAL" default:"30s"`

	// Preview cache
	PreviewCacheSize int           `envconfig:"PREVIEW_CACHE_SIZE" default:"32"`
	PreviewCacheTTL  time.Duration `envconfig:"PREVIEW_CACHE_TTL" default:"10m"`

	// Slack (optional — sync summaries for the scheduled job)
	SlackToken   string `envconfig:"SLACK_BOT_TOKEN"`
	SlackChannel string `envconfig:"SLACK_CHANNEL"`

	// Author-entered project seed file (YAML). Loaded once when the persisted
	// project collection is empty.
	ProjectSeedPath string `envconfig:"PROJECT_SEED_PATH"`
}

// GitHubAppEnabled returns true if GitHub App credentials are configured.
func (c *Config) GitHubAppEnabled() bool {
	return c.GitHubAppID > 0 && c.GitHubInstallationID > 0 && c.GitHubPrivateKeyPath != ""
}

// GitHubEnabled returns true if any GitHub auth is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubToken != "" || c.GitHubAppEnabled()
}

// KVRestEnabled returns true if the remote key-value store is configured.
func (c *Config) KVRestEnabled() bool {
	return c.KVRestURL != "" && c.KVRestToken != ""
}

// SlackEnabled returns true if Slack notifications are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackToken != "" && c.SlackChannel != ""
}

// Validate rejects tuning values that would break the sync pacing contract.
func (c *Config) Validate() error {
	if c.SyncBatchSize < 1 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be >= 1, got %d", c.SyncBatchSize)
	}
	if c.SyncBatchDelay < 0 {
		return fmt.Errorf("SYNC_BATCH_DELAY must not be negative, got %s", c.SyncBatchDelay)
	}
	if c.SyncRateFloor < 0 {
		return fmt.Errorf("SYNC_RATE_FLOOR must not be negative, got %d", c.SyncRateFloor)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
