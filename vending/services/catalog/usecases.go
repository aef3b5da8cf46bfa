package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound   = fmt.Errorf("product not found")
	ErrInsufficientStock = fmt.Errorf("insufficient stock")
	ErrInvalidDelta      = fmt.Errorf("delta must not be zero")
)

// CatalogUseCase contém a lógica de negócio do catálogo
type CatalogUseCase struct {
	repository  CatalogRepository
	tracer      trace.Tracer
	logger      *zap.Logger
	adjustments metric.Int64Counter
}

// NewCatalogUseCase cria uma nova instância de CatalogUseCase
func NewCatalogUseCase(
	repository CatalogRepository,
	tracer trace.Tracer,
	logger *zap.Logger,
) *CatalogUseCase {
	adjustments, err := otel.Meter("catalog-service").Int64Counter(
		"catalog.stock_adjustments",
		metric.WithDescription("Stock adjustments applied, by movement type"),
	)
	if err != nil {
		logger.Warn("failed to create counter", zap.Error(err))
		adjustments = noop.Int64Counter{}
	}

	return &CatalogUseCase{
		repository:  repository,
		tracer:      tracer,
		logger:      logger,
		adjustments: adjustments,
	}
}

// Find retorna o produto e o seu estoque atual
func (uc *CatalogUseCase) Find(ctx context.Context, productID string) (*ProductInventory, error) {
	return uc.repository.GetProduct(ctx, productID)
}

// Adjust altera o estoque usando Lock Pessimista. Uma referência já aplicada
// retorna o produto atual sem alterá-lo.
func (uc *CatalogUseCase) Adjust(ctx context.Context, productID string, delta int, reference string) (*ProductInventory, error) {
	if delta == 0 {
		return nil, ErrInvalidDelta
	}

	ctx, span := uc.tracer.Start(ctx, "adjust_stock")
	defer span.End()
	span.SetAttributes(
		attribute.String("product_id", productID),
		attribute.Int("delta", delta),
		attribute.String("reference", reference),
	)

	// 1. Inicia a transação
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 2. Lock da linha até o Commit ou Rollback
	product, err := uc.repository.GetProductForUpdate(ctx, tx, productID)
	if err != nil {
		if !errors.Is(err, ErrProductNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}

	// 3. Idempotência dentro da transação
	exists, err := uc.repository.MovementExists(ctx, tx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to check reference %s: %w", reference, err)
	}
	if exists {
		uc.logger.Info("adjustment already applied",
			zap.String("product_id", productID),
			zap.String("reference", reference))
		return product, nil
	}

	// 4. O estoque nunca fica negativo
	if product.CurrentStock+delta < 0 {
		uc.logger.Info("insufficient stock",
			zap.String("product_id", productID),
			zap.Int("current_stock", product.CurrentStock),
			zap.Int("delta", delta))
		return nil, fmt.Errorf("product %s: %w", productID, ErrInsufficientStock)
	}

	movement := NewInventoryMovement(uuid.New().String(), productID, reference, delta)
	updated, err := uc.repository.AdjustStock(ctx, tx, movement, delta)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// 5. Commit da transação
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit adjustment: %w", err)
	}

	uc.adjustments.Add(ctx, 1, metric.WithAttributes(attribute.String("movement_type", movement.MovementType)))
	uc.logger.Info("stock adjusted",
		zap.String("product_id", productID),
		zap.Int("delta", delta),
		zap.Int("current_stock", updated.CurrentStock),
		zap.String("reference", reference))
	return updated, nil
}
