// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a .env file, an optional YAML file and LIVEBOARD_* env vars on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the persistence engine: postgres or memory.
	StoreDriver string `koanf:"store_driver"`

	// DBDSN is the postgres connection string.
	DBDSN             string        `koanf:"db_dsn"`
	DBMaxOpenConns    int           `koanf:"db_max_open_conns"`
	DBMaxIdleConns    int           `koanf:"db_max_idle_conns"`
	DBConnMaxLifetime time.Duration `koanf:"db_conn_max_lifetime"`
	DBAutoMigrate     bool          `koanf:"db_auto_migrate"`

	// CacheBackend selects the event metadata cache: none, memory or redis.
	CacheBackend  string `koanf:"cache_backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// JWTSecret signs and verifies access tokens (HS256).
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTL bounds the lifetime of tokens minted by tooling.
	TokenTTL time.Duration `koanf:"token_ttl"`

	// DefaultPrizeEventID identifies the fallback prize table.
	DefaultPrizeEventID int64 `koanf:"default_prize_event_id"`

	// VisibilityPadding widens the event listing window on both sides.
	VisibilityPadding time.Duration `koanf:"visibility_padding"`

	// DefaultLeaderboardLimit and MaxLeaderboardLimit bound the top-N size.
	DefaultLeaderboardLimit int `koanf:"default_leaderboard_limit"`
	MaxLeaderboardLimit     int `koanf:"max_leaderboard_limit"`

	// SweepSchedule is a cron spec (seconds field supported) for the periodic sweep.
	// Empty disables the scheduler; listing still sweeps.
	SweepSchedule string `koanf:"sweep_schedule"`

	// ExportDir receives archive zip files; empty disables export.
	ExportDir         string `koanf:"export_dir"`
	ExportQueueSize   int    `koanf:"export_queue_size"`
	ExportWorkerCount int    `koanf:"export_worker_count"`

	// DedupeSize sets the size of the export deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// SeedFile optionally points at a YAML file of events, prize tables and
	// user phones loaded into the store at startup.
	SeedFile string `koanf:"seed_file"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		StoreDriver:             StoreMemory,
		DBMaxOpenConns:          20,
		DBMaxIdleConns:          5,
		DBConnMaxLifetime:       30 * time.Minute,
		DBAutoMigrate:           true,
		CacheBackend:            CacheMemory,
		RedisAddr:               "localhost:6379",
		TokenTTL:                24 * time.Hour,
		DefaultPrizeEventID:     -1,
		VisibilityPadding:       24 * time.Hour,
		DefaultLeaderboardLimit: 10,
		MaxLeaderboardLimit:     100,
		SweepSchedule:           "@every 1m",
		ExportQueueSize:         1_000,
		ExportWorkerCount:       runtime.NumCPU(),
		DedupeSize:              10_000,
	}
}

// Validate checks field combinations that the loaders cannot.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver != StoreMemory && c.StoreDriver != StorePostgres:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	case c.StoreDriver == StorePostgres && strings.TrimSpace(c.DBDSN) == "":
		return fmt.Errorf("%w: db_dsn is required for postgres", ErrInvalidConfig)
	case c.CacheBackend != CacheNone && c.CacheBackend != CacheMemory && c.CacheBackend != CacheRedis:
		return fmt.Errorf("%w: unknown cache_backend %q", ErrInvalidConfig, c.CacheBackend)
	case c.CacheBackend == CacheRedis && strings.TrimSpace(c.RedisAddr) == "":
		return fmt.Errorf("%w: redis_addr is required for redis cache", ErrInvalidConfig)
	case strings.TrimSpace(c.JWTSecret) == "":
		return fmt.Errorf("%w: jwt_secret must not be empty", ErrInvalidConfig)
	case c.DefaultLeaderboardLimit < 1 || c.MaxLeaderboardLimit < c.DefaultLeaderboardLimit:
		return fmt.Errorf("%w: leaderboard limits must satisfy 1 <= default <= max", ErrInvalidConfig)
	case c.VisibilityPadding < 0:
		return fmt.Errorf("%w: visibility_padding must not be negative", ErrInvalidConfig)
	}
	return nil
}
