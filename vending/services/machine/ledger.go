package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Coin is a coin value in the smallest currency unit.
type Coin int

// AcceptedCoins is the closed denomination set, ascending. MakeChange relies on
// it being a canonical coin system; re-run the brute-force change test if it
// ever changes.
var AcceptedCoins = []Coin{1, 2, 5, 10, 20, 50, 100, 200}

var (
	ErrInvalidCoin = fmt.Errorf("we only accept %s", joinCoins(AcceptedCoins))
	ErrCannotCover = fmt.Errorf("pending coins do not cover the price")
)

// IsAccepted reports whether value is one of AcceptedCoins.
func IsAccepted(value int) bool {
	for _, c := range AcceptedCoins {
		if int(c) == value {
			return true
		}
	}
	return false
}

// CoinLedger holds the coins inserted for the current transaction.
type CoinLedger struct {
	pending []Coin
}

// NewCoinLedger returns an empty ledger.
func NewCoinLedger() *CoinLedger {
	return &CoinLedger{}
}

// Insert appends value if it is an accepted denomination.
func (l *CoinLedger) Insert(value int) error {
	if !IsAccepted(value) {
		return fmt.Errorf("coin %d: %w", value, ErrInvalidCoin)
	}
	l.pending = append(l.pending, Coin(value))
	return nil
}

// HasAnyFunds reports whether any coin is pending.
func (l *CoinLedger) HasAnyFunds() bool {
	return len(l.pending) > 0
}

// Total is the sum of the pending coins.
func (l *CoinLedger) Total() int {
	total := 0
	for _, c := range l.pending {
		total += int(c)
	}
	return total
}

// PendingCoins returns a copy of the pending coins in insertion order.
func (l *CoinLedger) PendingCoins() []Coin {
	out := make([]Coin, len(l.pending))
	copy(out, l.pending)
	return out
}

// CanCover reports whether the pending coins pay for price. A negative price is
// not a catalog price and never covered.
func (l *CoinLedger) CanCover(price int) bool {
	if price < 0 {
		return false
	}
	return l.Total() >= price
}

// Shortfall is price minus the pending total. Only meaningful when CanCover is false.
func (l *CoinLedger) Shortfall(price int) int {
	return price - l.Total()
}

// Settle closes the transaction for price and returns the change owed. The
// ledger is left untouched when the pending coins do not cover price.
func (l *CoinLedger) Settle(price int) (int, error) {
	if !l.CanCover(price) {
		return 0, fmt.Errorf("settle %d with %d pending: %w", price, l.Total(), ErrCannotCover)
	}
	change := l.Total() - price
	l.pending = nil
	return change, nil
}

// MakeChange splits amount into coins, largest denomination first. The till is
// assumed to hold an unlimited float of every denomination, so a sale never
// fails for lack of change. Zero or negative amounts yield no coins.
func MakeChange(amount int) []Coin {
	var coins []Coin
	desc := make([]Coin, len(AcceptedCoins))
	copy(desc, AcceptedCoins)
	sort.Slice(desc, func(i, j int) bool { return desc[i] > desc[j] })

	for _, c := range desc {
		for amount >= int(c) {
			coins = append(coins, c)
			amount -= int(c)
		}
	}
	return coins
}

func joinCoins(coins []Coin) string {
	parts := make([]string, len(coins))
	for i, c := range coins {
		parts[i] = strconv.Itoa(int(c))
	}
	return strings.Join(parts, ", ")
}
