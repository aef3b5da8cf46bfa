package main

import (
	"time"
)

// ProductInventory representa um produto do catálogo e o seu estoque
type ProductInventory struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	UnitPrice    int       `json:"unit_price" db:"unit_price"`
	CurrentStock int       `json:"current_stock" db:"current_stock"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// InventoryMovement representa uma movimentação de estoque
type InventoryMovement struct {
	ID             string    `json:"id" db:"id"`
	InventoryID    string    `json:"inventory_id" db:"inventory_id"`
	Reference      string    `json:"reference" db:"reference"`
	ChangeQuantity int       `json:"change_quantity" db:"change_quantity"`
	MovementType   string    `json:"movement_type" db:"movement_type"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// NewInventoryMovement cria o movimento registrado para um ajuste de delta
// unidades. ChangeQuantity é sempre positivo; a direção fica em MovementType.
func NewInventoryMovement(id, inventoryID, reference string, delta int) *InventoryMovement {
	movement := &InventoryMovement{
		ID:             id,
		InventoryID:    inventoryID,
		Reference:      reference,
		ChangeQuantity: delta,
		MovementType:   MovementTypeIncreased,
		CreatedAt:      time.Now(),
	}
	if delta < 0 {
		movement.ChangeQuantity = -delta
		movement.MovementType = MovementTypeDecreased
	}
	return movement
}

// MovementType representa os tipos de movimentação de estoque
const (
	MovementTypeDecreased = "decreased"
	MovementTypeIncreased = "increased"
)

// ProductResponse representa um produto na resposta da API
type ProductResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int    `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

func toResponse(p *ProductInventory) ProductResponse {
	return ProductResponse{
		ID:        p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Quantity:  p.CurrentStock,
	}
}

// AdjustStockRequest altera o estoque de um produto em Delta unidades.
// Reference identifica o ajuste; repetições com a mesma referência são
// aplicadas uma única vez.
type AdjustStockRequest struct {
	Delta     int    `json:"delta"`
	Reference string `json:"reference" binding:"required"`
}
