package store

import (
	"context"
	"fmt"

	"github.com/p-n-ai/pai-quiz-import/internal/platform/database"
)

// Open connects to the destination named by url. postgres:// URLs use a pgx
// pool; anything else is treated as a SQLite file. The returned store owns
// its connections.
func Open(ctx context.Context, url string, maxConns, minConns int) (*SQLStore, error) {
	if database.IsPostgresURL(url) {
		pool, err := database.OpenPostgres(ctx, url, maxConns, minConns)
		if err != nil {
			return nil, err
		}
		s, err := newSQLStore(ctx, &pgQuerier{pool: pool, owned: true})
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	}

	db, err := database.OpenSQLite(ctx, url)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	return s, nil
}
