// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading layers defaults, an optional YAML file and ARENA_* env vars.
// - External errors must be wrapped via this package's error helpers.
package config

// Storage drivers understood by the repository journal.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`
	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver selects the journal backend: memory, sqlite or postgres.
	StorageDriver string `koanf:"storage_driver"`
	// StorageDSN is the sqlite file path or postgres connection string.
	StorageDSN string `koanf:"storage_dsn"`

	// JWTSecret signs bearer tokens issued at login.
	JWTSecret string `koanf:"jwt_secret"`
	// JWTIssuer is the iss claim tokens carry; tokens from another issuer are rejected.
	JWTIssuer string `koanf:"jwt_issuer"`
	// TokenTTLMinutes bounds bearer token lifetime.
	TokenTTLMinutes int `koanf:"token_ttl_minutes"`

	// MatchBookSize caps how many issued matches await a vote.
	MatchBookSize int `koanf:"match_book_size"`
	// AllowSelfJudging lets a judge receive matches involving their own team.
	AllowSelfJudging bool `koanf:"allow_self_judging"`
	// MaxScoreDifference caps the vote margin; 0 means unlimited.
	MaxScoreDifference int `koanf:"max_score_difference"`

	// RateLimitRPS and RateLimitBurst throttle each client; RPS 0 disables.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// MetricsEnabled toggles Prometheus recording; /metrics is served either way.
	MetricsEnabled bool `koanf:"metrics_enabled"`
	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	// MetricsRefreshSeconds is how often system and tournament gauges refresh.
	MetricsRefreshSeconds int `koanf:"metrics_refresh_seconds"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		StorageDriver:      DriverMemory,
		StorageDSN:         "",
		JWTSecret:          "change-me",
		JWTIssuer:          "arena",
		TokenTTLMinutes:    30,
		MatchBookSize:      10_000,
		AllowSelfJudging:   false,
		MaxScoreDifference: 0,
		RateLimitRPS:       20,
		RateLimitBurst:     40,

		MetricsEnabled:        true,
		MetricsNamespace:      "arena",
		MetricsRefreshSeconds: 10,
	}
}
