package config

import (
	"github.com/applyflow/agent/internal/infra/browser"
	redisclient "github.com/applyflow/agent/internal/infra/redis"
	"github.com/applyflow/agent/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
	Browser   browser.Config     `yaml:"browser"`
	Pool      PoolConfig         `yaml:"pool"`
	Retry     RetryConfig        `yaml:"retry"`
	Auth      AuthConfig         `yaml:"auth"`
	Artifacts ArtifactsConfig    `yaml:"artifacts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// PoolConfig holds session pool settings. Intervals are in seconds.
type PoolConfig struct {
	MaxSessions          int `yaml:"max_sessions"`
	IdleTimeoutSeconds   int `yaml:"idle_timeout_seconds"`
	EvictIntervalSeconds int `yaml:"evict_interval_seconds"`
}

// RetryConfig holds retry policy settings.
type RetryConfig struct {
	MaxRetries       int     `yaml:"max_retries"`
	BaseDelaySeconds float64 `yaml:"base_delay_seconds"`
}

// AuthConfig holds authentication settings. Intervals are in seconds.
type AuthConfig struct {
	BaseURL              string `yaml:"base_url"`
	PollIntervalSeconds  int    `yaml:"poll_interval_seconds"`
	ChallengeWaitSeconds int    `yaml:"challenge_wait_seconds"`
}

// ArtifactsConfig holds diagnostic artifact settings.
type ArtifactsConfig struct {
	ScreenshotDir string `yaml:"screenshot_dir"`
}
