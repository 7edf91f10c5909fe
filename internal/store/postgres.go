package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgQuerier struct {
	pool  *pgxpool.Pool
	owned bool
}

// NewPostgresStore creates a PostgreSQL-backed store and applies the schema.
// The store does not own the pool; Close is a no-op for it.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*SQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return newSQLStore(ctx, &pgQuerier{pool: pool})
}

func (q *pgQuerier) exec(ctx context.Context, sql string, args ...any) error {
	_, err := q.pool.Exec(ctx, sql, args...)
	return err
}

func (q *pgQuerier) queryRow(ctx context.Context, sql string, args ...any) rowScanner {
	return q.pool.QueryRow(ctx, sql, args...)
}

func (q *pgQuerier) query(ctx context.Context, sql string, args ...any) (rowsScanner, error) {
	return q.pool.Query(ctx, sql, args...)
}

func (q *pgQuerier) isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (q *pgQuerier) isConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (q *pgQuerier) close() error {
	if q.owned {
		q.pool.Close()
	}
	return nil
}
