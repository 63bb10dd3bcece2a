// Package store holds the server-side session state of the token-issuing
// service: which sessions exist, which token each one currently accepts, and
// the issue rate-limit counters.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = fmt.Errorf("session not found")

// Session is one CSRF session. TokenID identifies the currently accepted
// token and is rotated on every refresh, which is what invalidates tokens a
// client may still hold.
type Session struct {
	ID        string    `json:"id"`
	TokenID   string    `json:"token_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionStore interface {
	Save(ctx context.Context, sess Session) error

	// Get returns ErrSessionNotFound for unknown or expired sessions.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete is idempotent; deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error

	// CountIssue increments the fixed-window issue counter for key and
	// returns the new count together with the time left in the window.
	CountIssue(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Config selects and configures a session store backend.
type Config struct {
	Type   string         `yaml:"type"` // "memory" (default) or "redis"
	Config map[string]any `yaml:"config"`
}

type redisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Build constructs the session store described by cfg.
func Build(cfg Config) (SessionStore, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		var rc redisConfig
		if err := mapstructure.Decode(cfg.Config, &rc); err != nil {
			return nil, fmt.Errorf("decoding redis store config: %w", err)
		}
		if rc.Addr == "" {
			return nil, fmt.Errorf("redis store requires an addr")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		return NewRedisStore(client, rc.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown store type '%s'", cfg.Type)
	}
}
