// Package config defines service configuration and its loading rules.
package config

import (
	"context"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

// MinSecretLen is the shortest accepted JWT secret outside dev mode.
const MinSecretLen = 32

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// Store selects the persistence backend.
	Store string `koanf:"store" validate:"oneof=memory postgres dynamodb"`

	PostgresHost         string `koanf:"postgres_dsn_host" validate:"required_if=Store postgres"`
	PostgresPort         int    `koanf:"postgres_dsn_port" validate:"omitempty,min=1,max=65535"`
	PostgresUser         string `koanf:"postgres_user" validate:"required_if=Store postgres"`
	PostgresPassword     string `koanf:"postgres_password"`
	PostgresDB           string `koanf:"postgres_db" validate:"required_if=Store postgres"`
	PostgresSSLMode      string `koanf:"postgres_sslmode" validate:"oneof=disable require"`
	PostgresMaxOpenConns int    `koanf:"postgres_max_open_conns" validate:"min=0"`

	DynamoDBRegion      string `koanf:"dynamodb_region" validate:"required_if=Store dynamodb"`
	DynamoDBEndpoint    string `koanf:"dynamodb_endpoint" validate:"omitempty,url"`
	DynamoDBTablePrefix string `koanf:"dynamodb_table_prefix"`

	// JWTSecret signs session tokens. Dev mode with the memory store may
	// leave it short or empty, in which case a throwaway secret is used.
	JWTSecret     string `koanf:"jwt_secret"`
	JWTTTLMinutes int    `koanf:"jwt_ttl_minutes" validate:"min=1"`
	DevMode       bool   `koanf:"dev_mode"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit    int `koanf:"max_leaderboard_limit" validate:"min=1"`
	LeaderboardConcurrency int `koanf:"leaderboard_concurrency" validate:"min=1"`

	// BandStrong and BandBorderline are thresholds on the normalized score.
	BandStrong     float64 `koanf:"band_strong" validate:"gtfield=BandBorderline,lte=5"`
	BandBorderline float64 `koanf:"band_borderline" validate:"gte=0"`

	ScreeningEnabled        bool    `koanf:"screening_enabled"`
	ScreeningProvider       string  `koanf:"screening_provider" validate:"oneof=none anthropic openai"`
	ScreeningModel          string  `koanf:"screening_model"`
	ScreeningAPIKey         string  `koanf:"screening_api_key"`
	ScreeningBaseURL        string  `koanf:"screening_base_url" validate:"omitempty,url"`
	ScreeningRPS            float64 `koanf:"screening_rps" validate:"min=0"`
	ScreeningBurst          int     `koanf:"screening_burst" validate:"min=0"`
	ScreeningWorkers        int     `koanf:"screening_workers" validate:"min=1"`
	ScreeningQueueSize      int     `koanf:"screening_queue_size" validate:"min=1"`
	ScreeningDedupeSize     int     `koanf:"screening_dedupe_size" validate:"min=1"`
	DuplicateTitleThreshold float64 `koanf:"duplicate_title_threshold" validate:"gt=0,lte=1"`

	RollbarToken       string `koanf:"rollbar_token"`
	RollbarEnvironment string `koanf:"rollbar_environment"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		Store:                   StoreMemory,
		PostgresPort:            5432,
		PostgresSSLMode:         "disable",
		JWTTTLMinutes:           720,
		MaxLeaderboardLimit:     500,
		LeaderboardConcurrency:  8,
		BandStrong:              4.0,
		BandBorderline:          3.0,
		ScreeningProvider:       "none",
		ScreeningWorkers:        2,
		ScreeningQueueSize:      1024,
		ScreeningDedupeSize:     10000,
		DuplicateTitleThreshold: 0.85,
	}
}

// JWTTTL returns the token lifetime.
func (c *Config) JWTTTL() time.Duration { return time.Duration(c.JWTTTLMinutes) * time.Minute }

// InsecureSecretAllowed reports whether a short JWT secret is tolerated.
func (c *Config) InsecureSecretAllowed() bool { return c.DevMode && c.Store == StoreMemory }

// LLMScreening reports whether an LLM provider should be wired.
func (c *Config) LLMScreening() bool {
	return c.ScreeningEnabled && c.ScreeningProvider != "" && c.ScreeningProvider != "none"
}
