package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders to SQLite's ?N form.
func rebind(q string) string {
	return placeholder.ReplaceAllString(q, "?$1")
}

type sqliteQuerier struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store and applies the schema.
// Closing the store closes db.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return newSQLStore(ctx, &sqliteQuerier{db: db})
}

func (q *sqliteQuerier) exec(ctx context.Context, query string, args ...any) error {
	_, err := q.db.ExecContext(ctx, rebind(query), args...)
	return err
}

func (q *sqliteQuerier) queryRow(ctx context.Context, query string, args ...any) rowScanner {
	return q.db.QueryRowContext(ctx, rebind(query), args...)
}

func (q *sqliteQuerier) query(ctx context.Context, query string, args ...any) (rowsScanner, error) {
	rows, err := q.db.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (q *sqliteQuerier) isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (q *sqliteQuerier) isConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (q *sqliteQuerier) close() error { return q.db.Close() }

// sqlRows adapts *sql.Rows, whose Close returns an error.
type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }
