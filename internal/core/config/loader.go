package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Pool.MaxSessions == 0 {
		cfg.Pool.MaxSessions = 10
	}
	if cfg.Pool.IdleTimeoutSeconds == 0 {
		cfg.Pool.IdleTimeoutSeconds = 3600
	}
	if cfg.Pool.EvictIntervalSeconds == 0 {
		cfg.Pool.EvictIntervalSeconds = 60
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BaseDelaySeconds == 0 {
		cfg.Retry.BaseDelaySeconds = 1.0
	}

	if cfg.Auth.BaseURL == "" {
		cfg.Auth.BaseURL = "https://www.linkedin.com"
	}
	if cfg.Auth.PollIntervalSeconds == 0 {
		cfg.Auth.PollIntervalSeconds = 4
	}
	if cfg.Auth.ChallengeWaitSeconds == 0 {
		cfg.Auth.ChallengeWaitSeconds = 300
	}

	if cfg.Browser.ViewportWidth == 0 {
		cfg.Browser.ViewportWidth = 1920
	}
	if cfg.Browser.ViewportHeight == 0 {
		cfg.Browser.ViewportHeight = 1080
	}
	if cfg.Browser.NavTimeoutSeconds == 0 {
		cfg.Browser.NavTimeoutSeconds = 30
	}

	if cfg.Artifacts.ScreenshotDir == "" {
		cfg.Artifacts.ScreenshotDir = "artifacts/screenshots"
	}
}
