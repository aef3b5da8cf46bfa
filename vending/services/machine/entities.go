package main

// Product is the immutable definition of a sellable item. UnitPrice is in the
// smallest currency unit.
type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int    `json:"unit_price"`
}

// StockEntry pairs a Product with its on-hand quantity.
type StockEntry struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// InStock reports whether at least one unit can be sold.
func (s StockEntry) InStock() bool {
	return s.Quantity > 0
}

// MachineState is the purchase controller state.
type MachineState string

const (
	StateIdle     MachineState = "idle"
	StateSelected MachineState = "selected"
)

// selection holds Idle or Selected(productID). The zero value is Idle.
type selection struct {
	productID string
	active    bool
}

func idle() selection {
	return selection{}
}

func selected(productID string) selection {
	return selection{productID: productID, active: true}
}

func (s selection) state() MachineState {
	if s.active {
		return StateSelected
	}
	return StateIdle
}

func (s selection) get() (string, bool) {
	return s.productID, s.active
}

// OutcomeKind names the result of a purchase controller event.
type OutcomeKind string

const (
	OutcomeAwaitingFunds     OutcomeKind = "awaiting_funds"
	OutcomeInsufficientFunds OutcomeKind = "insufficient_funds"
	OutcomeSaleCompleted     OutcomeKind = "sale_completed"
	OutcomeOutOfStock        OutcomeKind = "out_of_stock"
	OutcomeProductNotFound   OutcomeKind = "product_not_found"
	OutcomeInvalidCoin       OutcomeKind = "invalid_coin"
	// OutcomeNoSelectionYet is reserved. A coin inserted while idle is
	// answered with OutcomeCoinAccepted, so no event produces it today.
	OutcomeNoSelectionYet    OutcomeKind = "no_selection_yet"
	OutcomeInvalidQuantity   OutcomeKind = "invalid_quantity"
	OutcomeCoinAccepted      OutcomeKind = "coin_accepted"
	OutcomeStockReloaded     OutcomeKind = "stock_reloaded"
)

// Outcome is returned for every event. Only the fields relevant to Kind are set.
type Outcome struct {
	Kind         OutcomeKind `json:"kind"`
	ProductID    string      `json:"product_id,omitempty"`
	Shortfall    int         `json:"shortfall,omitempty"`
	Change       int         `json:"change"`
	ChangeCoins  []Coin      `json:"change_coins,omitempty"`
	PendingTotal int         `json:"pending_total"`
	Quantity     int         `json:"quantity,omitempty"`
}

func awaitingFunds(productID string) Outcome {
	return Outcome{Kind: OutcomeAwaitingFunds, ProductID: productID}
}

func insufficientFunds(productID string, shortfall, pending int) Outcome {
	return Outcome{Kind: OutcomeInsufficientFunds, ProductID: productID, Shortfall: shortfall, PendingTotal: pending}
}

func saleCompleted(productID string, change int) Outcome {
	return Outcome{Kind: OutcomeSaleCompleted, ProductID: productID, Change: change, ChangeCoins: MakeChange(change)}
}

func outOfStock(productID string, pending int) Outcome {
	return Outcome{Kind: OutcomeOutOfStock, ProductID: productID, PendingTotal: pending}
}

func productNotFound(productID string, pending int) Outcome {
	return Outcome{Kind: OutcomeProductNotFound, ProductID: productID, PendingTotal: pending}
}

func invalidCoin(pending int) Outcome {
	return Outcome{Kind: OutcomeInvalidCoin, PendingTotal: pending}
}

func coinAccepted(pending int) Outcome {
	return Outcome{Kind: OutcomeCoinAccepted, PendingTotal: pending}
}

func invalidQuantity(productID string, pending int) Outcome {
	return Outcome{Kind: OutcomeInvalidQuantity, ProductID: productID, PendingTotal: pending}
}

func stockReloaded(productID string, quantity, pending int) Outcome {
	return Outcome{Kind: OutcomeStockReloaded, ProductID: productID, Quantity: quantity, PendingTotal: pending}
}
