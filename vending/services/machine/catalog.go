package main

import (
	"context"
	"fmt"
	"sync"
)

var (
	ErrProductNotFound   = fmt.Errorf("that code does not exist in our system")
	ErrInsufficientStock = fmt.Errorf("insufficient stock")
)

// Catalog is the stock store consulted by the purchase controller.
//
// AdjustQuantity must serialize concurrent adjustments of the same product and
// must reject any delta that would take the quantity below zero with
// ErrInsufficientStock. An adjustment whose reference was already applied
// returns the current entry and changes nothing.
type Catalog interface {
	Find(ctx context.Context, productID string) (*StockEntry, error)
	AdjustQuantity(ctx context.Context, productID string, delta int, reference string) (*StockEntry, error)
}

// InMemoryCatalog is a Catalog held in process memory. Entries are never
// removed once loaded.
type InMemoryCatalog struct {
	mu      sync.RWMutex
	entries map[string]StockEntry
	applied map[string]bool
}

// NewInMemoryCatalog builds a catalog from entries. A later entry with the
// same product id replaces an earlier one.
func NewInMemoryCatalog(entries []StockEntry) *InMemoryCatalog {
	c := &InMemoryCatalog{
		entries: make(map[string]StockEntry, len(entries)),
		applied: make(map[string]bool),
	}
	for _, e := range entries {
		c.entries[e.Product.ID] = e
	}
	return c
}

func (c *InMemoryCatalog) Find(ctx context.Context, productID string) (*StockEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, ErrProductNotFound)
	}
	return &e, nil
}

func (c *InMemoryCatalog) AdjustQuantity(ctx context.Context, productID string, delta int, reference string) (*StockEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, ErrProductNotFound)
	}
	if reference != "" && c.applied[reference] {
		return &e, nil
	}
	if e.Quantity+delta < 0 {
		return nil, fmt.Errorf("product %s has %d, adjust %d: %w", productID, e.Quantity, delta, ErrInsufficientStock)
	}
	e.Quantity += delta
	c.entries[productID] = e
	if reference != "" {
		c.applied[reference] = true
	}
	return &e, nil
}
