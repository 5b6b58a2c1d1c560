package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aluiziolira/beerme/models"
)

// LoadFailures reads the failure ledger.
func (db *DB) LoadFailures(ctx context.Context) (*models.FailureLedger, error) {
	rows, err := db.db.QueryContext(ctx, "SELECT key FROM failures")
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	ledger := models.NewFailureLedger()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		ledger.Add(key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return ledger, nil
}

// SaveFailures replaces the stored failure ledger with l.
func (db *DB) SaveFailures(ctx context.Context, l *models.FailureLedger) error {
	return db.replace(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM failures"); err != nil {
			return fmt.Errorf("clear failures: %w", err)
		}
		for _, key := range l.Keys() {
			if _, err := tx.ExecContext(ctx, "INSERT INTO failures (key) VALUES (?)", key); err != nil {
				return fmt.Errorf("insert failure %s: %w", key, err)
			}
		}
		return nil
	})
}
