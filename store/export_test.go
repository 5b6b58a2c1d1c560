package store

import (
	"context"
	"database/sql"
)

// QueryRowContext exposes the underlying connection to tests.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}
