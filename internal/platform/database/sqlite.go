package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLitePath strips an optional file: or sqlite:// scheme from a SQLite URL.
// Query parameters are only dropped from URLs; a bare path is taken as is.
func SQLitePath(u string) string {
	trimmed := strings.TrimPrefix(u, "sqlite://")
	trimmed = strings.TrimPrefix(trimmed, "file:")
	if trimmed == u {
		return u
	}
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}

// fileURI turns a filesystem path into a SQLite URI with the given query.
func fileURI(path, query string) string {
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + query
}

// OpenSQLite opens a read-write SQLite database with foreign keys enforced.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	path = SQLitePath(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	return openSQLite(ctx, fileURI(path, "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), 1)
}

// OpenSQLiteReadOnly opens an existing SQLite database that cannot be written to.
func OpenSQLiteReadOnly(ctx context.Context, path string) (*sql.DB, error) {
	path = SQLitePath(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	q := url.Values{}
	q.Set("mode", "ro")
	return openSQLite(ctx, fileURI(path, q.Encode()+"&_pragma=query_only(1)"), 4)
}

func openSQLite(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	return db, nil
}
