package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/matheusmosca/vending-machine/vending/internal/stock"
)

const schema = `
CREATE TABLE IF NOT EXISTS products_inventory (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	unit_price    INTEGER NOT NULL CHECK (unit_price >= 0),
	current_stock INTEGER NOT NULL CHECK (current_stock >= 0),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS inventory_movements (
	id              UUID PRIMARY KEY,
	inventory_id    TEXT NOT NULL REFERENCES products_inventory (id),
	reference       TEXT NOT NULL,
	change_quantity INTEGER NOT NULL,
	movement_type   TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_inventory_movements_reference ON inventory_movements (reference);
`

const upsertProduct = `
	INSERT INTO products_inventory (id, name, unit_price, current_stock)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name,
	    unit_price = EXCLUDED.unit_price,
	    current_stock = EXCLUDED.current_stock,
	    updated_at = NOW()
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Seed creates the catalog tables when missing and upserts every stock item.
func Seed(ctx context.Context, db *sql.DB, items []stock.Item) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := seedProducts(ctx, tx, items); err != nil {
		return err
	}
	return tx.Commit()
}

func seedProducts(ctx context.Context, db execer, items []stock.Item) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	for _, item := range items {
		if _, err := db.ExecContext(ctx, upsertProduct, item.Code, item.Name, item.Price, item.Quantity); err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", item.Code, err)
		}
	}
	return nil
}
