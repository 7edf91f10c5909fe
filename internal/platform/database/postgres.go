// Package database opens the connections the pipelines run on: a pgx pool
// for a PostgreSQL destination and database/sql handles for SQLite files.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName tags destination sessions in pg_stat_activity.
const ApplicationName = "pai-quiz-import"

// IsPostgresURL reports whether url addresses a PostgreSQL server.
func IsPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

// PoolConfig parses url and applies the pool bounds used by an import run.
func PoolConfig(url string, maxConns, minConns int) (*pgxpool.Config, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	if minConns >= 0 && int32(minConns) <= cfg.MaxConns {
		cfg.MinConns = int32(minConns)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	return cfg, nil
}

// OpenPostgres creates a pool and checks that the server answers.
func OpenPostgres(ctx context.Context, url string, maxConns, minConns int) (*pgxpool.Pool, error) {
	cfg, err := PoolConfig(url, maxConns, minConns)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}
