package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogRepository define a interface para operações de banco de dados do catálogo
type CatalogRepository interface {
	GetProduct(ctx context.Context, productID string) (*ProductInventory, error)
	GetProductForUpdate(ctx context.Context, tx Tx, productID string) (*ProductInventory, error)
	MovementExists(ctx context.Context, tx Tx, reference string) (bool, error)
	AdjustStock(ctx context.Context, tx Tx, movement *InventoryMovement, delta int) (*ProductInventory, error)
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// PostgresCatalogRepository implementa CatalogRepository usando PostgreSQL
type PostgresCatalogRepository struct {
	db *pgxpool.Pool
}

// NewCatalogRepository cria uma nova instância de PostgresCatalogRepository
func NewCatalogRepository(db *pgxpool.Pool) CatalogRepository {
	return &PostgresCatalogRepository{
		db: db,
	}
}

const selectProduct = `
	SELECT id, name, unit_price, current_stock, created_at, updated_at
	FROM products_inventory
	WHERE id = $1
`

func scanProduct(row pgx.Row) (*ProductInventory, error) {
	var p ProductInventory
	err := row.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.CurrentStock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProduct busca um produto sem lock
func (r *PostgresCatalogRepository) GetProduct(ctx context.Context, productID string) (*ProductInventory, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, selectProduct, productID))
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", productID, err)
	}
	return p, nil
}

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit() error {
	return t.tx.Commit(context.Background())
}

func (t *PostgresTx) Rollback() error {
	return t.tx.Rollback(context.Background())
}

// BeginTx inicia uma nova transação
func (r *PostgresCatalogRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PostgresTx{tx: tx}, nil
}

// GetProductForUpdate obtém o produto com lock pessimista (FOR UPDATE)
func (r *PostgresCatalogRepository) GetProductForUpdate(ctx context.Context, tx Tx, productID string) (*ProductInventory, error) {
	pgTx := tx.(*PostgresTx).tx

	p, err := scanProduct(pgTx.QueryRow(ctx, selectProduct+" FOR UPDATE", productID))
	if err != nil {
		return nil, fmt.Errorf("failed to get product with lock: %w", err)
	}
	return p, nil
}

// MovementExists verifica se a referência já foi aplicada
func (r *PostgresCatalogRepository) MovementExists(ctx context.Context, tx Tx, reference string) (bool, error) {
	pgTx := tx.(*PostgresTx).tx

	var exists bool
	err := pgTx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM inventory_movements
			WHERE reference = $1
		)
	`, reference).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// AdjustStock altera o estoque e registra o movimento. A linha já deve estar
// travada por GetProductForUpdate na mesma transação.
func (r *PostgresCatalogRepository) AdjustStock(ctx context.Context, tx Tx, movement *InventoryMovement, delta int) (*ProductInventory, error) {
	pgTx := tx.(*PostgresTx).tx

	// 1. Atualiza o estoque do produto
	p, err := scanProduct(pgTx.QueryRow(ctx, `
		UPDATE products_inventory
		SET current_stock = current_stock + $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, unit_price, current_stock, created_at, updated_at
	`, movement.InventoryID, delta))
	if err != nil {
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	// 2. Insere o registro de movimentação
	_, err = pgTx.Exec(ctx, `
		INSERT INTO inventory_movements (id, inventory_id, reference, change_quantity, movement_type)
		VALUES ($1, $2, $3, $4, $5)
	`, movement.ID, movement.InventoryID, movement.Reference, movement.ChangeQuantity, movement.MovementType)
	if err != nil {
		return nil, fmt.Errorf("failed to insert movement record: %w", err)
	}

	return p, nil
}
