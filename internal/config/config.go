package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingJWTSecret aborts startup: the service never falls back to a
// default signing secret.
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	Env      string `env:"APP_ENV" envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// JWTSecret signs session tokens. Required.
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"168h"`

	RateLimitMax    int64         `env:"RATE_LIMIT_MAX" envDefault:"100"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`

	// RedisAddr, when set, switches rate limiting to the shared redis
	// counter. Empty means the in-process limiter.
	RedisAddr string `env:"REDIS_ADDR"`

	// DatabaseURL, when set, selects the postgres identity store. Empty
	// means the in-memory store.
	DatabaseURL string `env:"DATABASE_URL"`
}

func Load() (*Config, error) {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	return cfg, nil
}
