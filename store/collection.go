package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aluiziolira/beerme/models"
)

// LoadCollection reads every stored recipe in insertion order. An empty
// database yields an empty collection.
func (db *DB) LoadCollection(ctx context.Context) (*models.Collection, error) {
	rows, err := db.db.QueryContext(ctx, "SELECT id, body FROM recipes ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("query recipes: %w", err)
	}
	defer rows.Close()

	collection := models.NewCollection()
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		var recipe models.Recipe
		if err := json.Unmarshal([]byte(body), &recipe); err != nil {
			return nil, fmt.Errorf("decode recipe %s: %w", id, err)
		}
		recipe.ID = id
		collection.Add(&recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipes: %w", err)
	}
	return collection, nil
}

// SaveCollection replaces the stored recipes with c in one transaction, so a
// reader sees either the previous snapshot or the new one.
func (db *DB) SaveCollection(ctx context.Context, c *models.Collection) error {
	return db.replace(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM recipes"); err != nil {
			return fmt.Errorf("clear recipes: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, "INSERT INTO recipes (id, position, body) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, recipe := range c.Recipes() {
			body, err := json.Marshal(recipe)
			if err != nil {
				return fmt.Errorf("encode recipe %s: %w", recipe.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, recipe.ID, i, string(body)); err != nil {
				return fmt.Errorf("insert recipe %s: %w", recipe.ID, err)
			}
		}
		return nil
	})
}
