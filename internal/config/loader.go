package config

import (
	"context"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if ARENA_CONFIG is set
//  3. env (prefix ARENA_)
func Load(_ context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path := os.Getenv("ARENA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, wrapLoad(err)
		}
	}

	// Map env keys like ARENA_MATCH_BOOK_SIZE -> match_book_size (flat keys).
	// ARENA_CONFIG only names the file and is not a config key.
	envProvider := env.Provider("ARENA_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "arena_")
		if s == "config" {
			return ""
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, wrapLoad(err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, wrapLoad(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the service relies on.
func (c *Config) Validate() error {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.JWTSecret == "":
		return invalid("jwt_secret must not be empty")
	case c.JWTIssuer == "":
		return invalid("jwt_issuer must not be empty")
	case c.TokenTTLMinutes <= 0:
		return invalid("token_ttl_minutes must be positive")
	case c.MaxScoreDifference < 0:
		return invalid("max_score_difference must not be negative")
	case c.RateLimitRPS < 0:
		return invalid("rate_limit_rps must not be negative")
	case c.MetricsRefreshSeconds <= 0:
		return invalid("metrics_refresh_seconds must be positive")
	}
	switch c.StorageDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.StorageDSN) == "" {
			return invalid("storage_dsn is required for " + c.StorageDriver)
		}
	default:
		return invalid("unknown storage_driver " + c.StorageDriver)
	}
	return nil
}
