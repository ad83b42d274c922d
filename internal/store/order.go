// Package store persists the tracked order collection as a JSON file.
package store

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Prices serialize as plain JSON numbers, matching the exchange
	// payloads and the persisted file format.
	decimal.MarshalJSONWithoutQuotes = true
}

// Order side values.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order status values. The exchange may report additional transient
// states; they pass through Status untouched.
const (
	StatusOpen      = "open"
	StatusFilled    = "filled"
	StatusCancelled = "cancelled"
)

// Order is a trading instruction tracked both locally and on the
// exchange. OrderID is assigned by the exchange and is the merge key.
type Order struct {
	OrderID  string          `json:"orderID"`
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Side     string          `json:"side,omitempty"`
	Quantity decimal.Decimal `json:"quantity,omitempty"`
	Status   string          `json:"status"`
}

// IsTerminal reports whether the order needs no further reconciliation.
func (o Order) IsTerminal() bool {
	return o.Status == StatusFilled || o.Status == StatusCancelled
}

// SideOrDefault returns the order side, defaulting to buy.
func (o Order) SideOrDefault() string {
	if o.Side == "" {
		return SideBuy
	}
	return o.Side
}

// QuantityOrDefault returns the order quantity, defaulting to 1.
func (o Order) QuantityOrDefault() decimal.Decimal {
	if o.Quantity.IsZero() {
		return decimal.NewFromInt(1)
	}
	return o.Quantity
}
