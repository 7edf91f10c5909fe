// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Kind selects which pipeline a configuration is validated for.
type Kind int

const (
	// KindWordPress is the HTTP source import.
	KindWordPress Kind = iota
	// KindLegacy is the SQLite to relational migration.
	KindLegacy
)

// Quiz placement policies for quizzes that already exist in the destination.
const (
	PlacementUpdate = "update"
	PlacementKeep   = "keep"
)

// Config holds all application configuration.
type Config struct {
	Source   SourceConfig
	Legacy   LegacyConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Import   ImportConfig
	Migrate  MigrateConfig
	Log      LogConfig
}

// SourceConfig holds WordPress/Tutor LMS API settings.
type SourceConfig struct {
	URL            string
	Username       string
	AppPassword    string
	Timeout        time.Duration
	SlowTimeout    time.Duration
	PerPage        int
	StrategiesFile string
}

// LegacyConfig points at the legacy SQLite file.
type LegacyConfig struct {
	SQLitePath string
}

// DatabaseConfig holds destination connection settings.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings. An empty URL disables caching.
type CacheConfig struct {
	URL string
	TTL time.Duration
}

// ImportConfig holds reconciliation and reporting settings.
type ImportConfig struct {
	QuizPlacement string
	ReportXLSX    string
}

// MigrateConfig throttles the bulk migration path.
type MigrateConfig struct {
	BatchSize  int
	BatchPause time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level     string
	Format    string
	AddSource bool
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Source: SourceConfig{
			URL:            strings.TrimRight(envStr("LEARN_SOURCE_URL", ""), "/"),
			Username:       envStr("LEARN_SOURCE_USERNAME", ""),
			AppPassword:    envStr("LEARN_SOURCE_APP_PASSWORD", ""),
			Timeout:        envDuration("LEARN_SOURCE_TIMEOUT", 10*time.Second),
			SlowTimeout:    envDuration("LEARN_SOURCE_SLOW_TIMEOUT", 20*time.Second),
			PerPage:        envInt("LEARN_SOURCE_PER_PAGE", 100),
			StrategiesFile: envStr("LEARN_SOURCE_STRATEGIES_FILE", ""),
		},
		Legacy: LegacyConfig{
			SQLitePath: envStr("LEARN_LEGACY_SQLITE_PATH", "./prisma/dev.db"),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", "file:quiz.db"),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL: envStr("LEARN_CACHE_URL", ""),
			TTL: envDuration("LEARN_CACHE_TTL", 30*time.Minute),
		},
		Import: ImportConfig{
			QuizPlacement: strings.ToLower(envStr("LEARN_IMPORT_QUIZ_PLACEMENT", PlacementUpdate)),
			ReportXLSX:    envStr("LEARN_IMPORT_REPORT_XLSX", ""),
		},
		Migrate: MigrateConfig{
			BatchSize:  envInt("LEARN_MIGRATE_BATCH_SIZE", 50),
			BatchPause: envDuration("LEARN_MIGRATE_BATCH_PAUSE", 100*time.Millisecond),
		},
		Log: LogConfig{
			Level:     envStr("LEARN_LOG_LEVEL", "info"),
			Format:    envStr("LEARN_LOG_FORMAT", "json"),
			AddSource: envBool("LEARN_LOG_SOURCE", false),
		},
	}

	return cfg, nil
}

// Validate checks that required configuration is present for the given pipeline.
func (c *Config) Validate(kind Kind) error {
	switch kind {
	case KindWordPress:
		if c.Source.URL == "" {
			return fmt.Errorf("LEARN_SOURCE_URL is required")
		}
		if !strings.HasPrefix(c.Source.URL, "http://") && !strings.HasPrefix(c.Source.URL, "https://") {
			return fmt.Errorf("LEARN_SOURCE_URL must be an http(s) URL, got %q", c.Source.URL)
		}
		if (c.Source.Username == "") != (c.Source.AppPassword == "") {
			return fmt.Errorf("LEARN_SOURCE_USERNAME and LEARN_SOURCE_APP_PASSWORD must be set together")
		}
		if c.Source.PerPage < 1 || c.Source.PerPage > 100 {
			return fmt.Errorf("LEARN_SOURCE_PER_PAGE must be between 1 and 100, got %d", c.Source.PerPage)
		}
	case KindLegacy:
		if c.Legacy.SQLitePath == "" {
			return fmt.Errorf("LEARN_LEGACY_SQLITE_PATH is required")
		}
		if c.Migrate.BatchSize < 1 {
			return fmt.Errorf("LEARN_MIGRATE_BATCH_SIZE must be positive, got %d", c.Migrate.BatchSize)
		}
	default:
		return fmt.Errorf("unknown pipeline kind %d", kind)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("LEARN_DATABASE_URL is required")
	}

	if c.Import.QuizPlacement != PlacementUpdate && c.Import.QuizPlacement != PlacementKeep {
		return fmt.Errorf("LEARN_IMPORT_QUIZ_PLACEMENT must be 'update' or 'keep', got %q", c.Import.QuizPlacement)
	}

	return nil
}

// HasCache returns true if a response cache is configured.
func (c *Config) HasCache() bool {
	return c.Cache.URL != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
