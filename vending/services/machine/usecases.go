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

// PurchaseController is the purchase state machine of one vending machine. It
// owns the coin ledger and the selection; callers must not drive it from more
// than one goroutine at a time.
type PurchaseController struct {
	catalog   Catalog
	ledger    *CoinLedger
	selection selection
	logger    *zap.Logger
	tracer    trace.Tracer

	// saleRef identifies the stock decrement of the sale in progress. It is
	// kept across failed attempts and cleared once the sale settles or the
	// selection moves to another product.
	saleRef string

	salesCompleted  metric.Int64Counter
	coinsRejected   metric.Int64Counter
	changeDispensed metric.Int64Counter
}

// NewPurchaseController creates an idle controller with an empty ledger.
func NewPurchaseController(catalog Catalog, logger *zap.Logger, tracer trace.Tracer) *PurchaseController {
	meter := otel.Meter("machine-service")
	return &PurchaseController{
		catalog:         catalog,
		ledger:          NewCoinLedger(),
		selection:       idle(),
		logger:          logger,
		tracer:          tracer,
		salesCompleted:  int64Counter(meter, "vending.sales.completed", "Completed sales"),
		coinsRejected:   int64Counter(meter, "vending.coins.rejected", "Coins outside the accepted denominations"),
		changeDispensed: int64Counter(meter, "vending.change.dispensed", "Change returned, in the smallest currency unit"),
	}
}

func int64Counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

// Select records productID as the current selection and, when coins are
// already pending, tries to complete the sale.
func (pc *PurchaseController) Select(ctx context.Context, productID string) (Outcome, error) {
	entry, err := pc.catalog.Find(ctx, productID)
	if errors.Is(err, ErrProductNotFound) {
		pc.logger.Info("unknown product selected", zap.String("product_id", productID))
		return productNotFound(productID, pc.ledger.Total()), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to find product %s: %w", productID, err)
	}

	if current, ok := pc.selection.get(); !ok || current != entry.Product.ID {
		pc.saleRef = ""
	}
	pc.selection = selected(entry.Product.ID)

	if !pc.ledger.HasAnyFunds() {
		return awaitingFunds(productID), nil
	}
	return pc.releaseCheck(ctx)
}

// InsertCoin adds a coin to the ledger and, when a product is selected, tries
// to complete the sale.
func (pc *PurchaseController) InsertCoin(ctx context.Context, value int) (Outcome, error) {
	if err := pc.ledger.Insert(value); err != nil {
		pc.coinsRejected.Add(ctx, 1)
		pc.logger.Info("coin rejected", zap.Int("value", value))
		return invalidCoin(pc.ledger.Total()), nil
	}

	if _, ok := pc.selection.get(); !ok {
		return coinAccepted(pc.ledger.Total()), nil
	}
	return pc.releaseCheck(ctx)
}

// Reload adds quantity units of productID to the catalog. It never touches the
// selection or the ledger.
func (pc *PurchaseController) Reload(ctx context.Context, productID string, quantity int) (Outcome, error) {
	if quantity <= 0 {
		return invalidQuantity(productID, pc.ledger.Total()), nil
	}

	entry, err := pc.catalog.AdjustQuantity(ctx, productID, quantity, uuid.New().String())
	if errors.Is(err, ErrProductNotFound) {
		return productNotFound(productID, pc.ledger.Total()), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to reload product %s: %w", productID, err)
	}

	pc.logger.Info("stock reloaded",
		zap.String("product_id", productID),
		zap.Int("added", quantity),
		zap.Int("quantity", entry.Quantity))
	return stockReloaded(productID, entry.Quantity, pc.ledger.Total()), nil
}

// releaseCheck completes the sale of the selected product when it is in stock
// and paid for.
func (pc *PurchaseController) releaseCheck(ctx context.Context) (Outcome, error) {
	productID, _ := pc.selection.get()

	ctx, span := pc.tracer.Start(ctx, "release_check")
	defer span.End()
	span.SetAttributes(
		attribute.String("product_id", productID),
		attribute.Int("pending_total", pc.ledger.Total()),
	)

	entry, err := pc.catalog.Find(ctx, productID)
	if errors.Is(err, ErrProductNotFound) {
		// Catalog entries are never removed, so this is a bug in the catalog.
		pc.logger.Error("selected product vanished from catalog", zap.String("product_id", productID))
		return productNotFound(productID, pc.ledger.Total()), nil
	}
	if err != nil {
		span.RecordError(err)
		return Outcome{}, fmt.Errorf("failed to find selected product %s: %w", productID, err)
	}

	if !entry.InStock() {
		return outOfStock(productID, pc.ledger.Total()), nil
	}

	price := entry.Product.UnitPrice
	if !pc.ledger.CanCover(price) {
		return insufficientFunds(productID, pc.ledger.Shortfall(price), pc.ledger.Total()), nil
	}

	// The unit is taken before the ledger is settled; a lost race for the last
	// unit leaves the coins pending.
	if pc.saleRef == "" {
		pc.saleRef = uuid.New().String()
	}
	span.SetAttributes(attribute.String("sale_reference", pc.saleRef))
	if _, err := pc.catalog.AdjustQuantity(ctx, productID, -1, pc.saleRef); err != nil {
		switch {
		case errors.Is(err, ErrInsufficientStock):
			return outOfStock(productID, pc.ledger.Total()), nil
		case errors.Is(err, ErrProductNotFound):
			pc.logger.Error("selected product vanished from catalog", zap.String("product_id", productID))
			return productNotFound(productID, pc.ledger.Total()), nil
		}
		span.RecordError(err)
		return Outcome{}, fmt.Errorf("failed to decrease stock of %s: %w", productID, err)
	}

	change, err := pc.ledger.Settle(price)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, fmt.Errorf("failed to settle sale of %s: %w", productID, err)
	}
	pc.selection = idle()
	pc.saleRef = ""

	attrs := metric.WithAttributes(attribute.String("product_id", productID))
	pc.salesCompleted.Add(ctx, 1, attrs)
	pc.changeDispensed.Add(ctx, int64(change), attrs)
	pc.logger.Info("sale completed",
		zap.String("product_id", productID),
		zap.Int("price", price),
		zap.Int("change", change))

	return saleCompleted(productID, change), nil
}

// CurrentSelection returns the selected product id, if any.
func (pc *PurchaseController) CurrentSelection() (string, bool) {
	return pc.selection.get()
}

// State is StateSelected while a product is selected, StateIdle otherwise.
func (pc *PurchaseController) State() MachineState {
	return pc.selection.state()
}

// PendingTotal is the value of the coins inserted since the last sale.
func (pc *PurchaseController) PendingTotal() int {
	return pc.ledger.Total()
}

// PendingCoins returns the coins inserted since the last sale.
func (pc *PurchaseController) PendingCoins() []Coin {
	return pc.ledger.PendingCoins()
}
