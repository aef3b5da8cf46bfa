// Package stock reads the stock list shared by the machine service and the
// catalog seed tool.
package stock

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultQuantity is used for rows without a quantity.
const DefaultQuantity = 2

//go:embed stock.yml
var defaultList []byte

// Item is one validated row of a stock list. Price is in the smallest
// currency unit.
type Item struct {
	Code     string
	Name     string
	Price    int
	Quantity int
}

type row struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Price    *int   `yaml:"price"`
	Quantity *int   `yaml:"quantity"`
}

// Parse decodes a YAML stock list. Rows without a quantity get
// defaultQuantity units.
func Parse(data []byte, defaultQuantity int) ([]Item, error) {
	var rows []row
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode stock list: %w", err)
	}

	items := make([]Item, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, r := range rows {
		if r.Code == "" {
			return nil, fmt.Errorf("stock row %d: code is required", i)
		}
		if seen[r.Code] {
			return nil, fmt.Errorf("stock row %d: duplicate code %s", i, r.Code)
		}
		seen[r.Code] = true

		if r.Price == nil || *r.Price < 0 {
			return nil, fmt.Errorf("stock row %d (%s): price must be a non-negative integer", i, r.Code)
		}
		quantity := defaultQuantity
		if r.Quantity != nil {
			quantity = *r.Quantity
		}
		if quantity < 0 {
			return nil, fmt.Errorf("stock row %d (%s): quantity cannot be negative", i, r.Code)
		}

		items = append(items, Item{Code: r.Code, Name: r.Name, Price: *r.Price, Quantity: quantity})
	}
	return items, nil
}

// Load reads the stock list at path, or the bundled list when path is empty.
func Load(path string, defaultQuantity int) ([]Item, error) {
	if path == "" {
		return Parse(defaultList, defaultQuantity)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stock file %s: %w", path, err)
	}
	return Parse(data, defaultQuantity)
}
