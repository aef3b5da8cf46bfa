package main

import (
	"github.com/matheusmosca/vending-machine/vending/internal/stock"
)

// LoadStock reads the stock list at path, or the bundled list when path is
// empty, as stock entries.
func LoadStock(path string) ([]StockEntry, error) {
	items, err := stock.Load(path, stock.DefaultQuantity)
	if err != nil {
		return nil, err
	}
	return toStockEntries(items), nil
}

func toStockEntries(items []stock.Item) []StockEntry {
	entries := make([]StockEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, StockEntry{
			Product:  Product{ID: item.Code, Name: item.Name, UnitPrice: item.Price},
			Quantity: item.Quantity,
		})
	}
	return entries
}
