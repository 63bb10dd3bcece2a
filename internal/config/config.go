package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/hazlamahedich/antiforge/internal/store"
)

type Config struct {
	// Addr is the listen address of the token-issuing service.
	Addr string `yaml:"addr"`

	// TokenMaxAge is the lifetime of issued tokens.
	TokenMaxAge time.Duration `yaml:"token_max_age"`

	// SigningKey is the HMAC key for minted tokens. At least 32 bytes.
	SigningKey string `yaml:"signing_key"`

	// IssuePolicy is an optional boolean expression gating issuance,
	// evaluated against remote_ip and user_agent.
	IssuePolicy string `yaml:"issue_policy"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Store     store.Config    `yaml:"store"`
}

type RateLimitConfig struct {
	// Limit is the number of issue/refresh requests allowed per window and
	// client. Zero disables limiting.
	Limit int64 `yaml:"limit"`

	Window time.Duration `yaml:"window"`
}

func defaults() Config {
	return Config{
		Addr:        ":8422",
		TokenMaxAge: time.Hour,
		RateLimit: RateLimitConfig{
			Limit:  30,
			Window: time.Minute,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file '%s': %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file '%s': %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.TokenMaxAge <= 0 {
		return fmt.Errorf("token_max_age must be positive")
	}
	if len(c.SigningKey) < 32 {
		return fmt.Errorf("signing_key must be at least 32 bytes")
	}
	if c.RateLimit.Limit > 0 && c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive when a limit is set")
	}
	return nil
}
