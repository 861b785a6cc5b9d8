package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is a point-in-time market snapshot. It has no identity across
// polls beyond its price.
type Ticker struct {
	TradeID int64           `json:"trade_id"`
	Price   decimal.Decimal `json:"price"`
	Size    decimal.Decimal `json:"size"`
	Bid     decimal.Decimal `json:"bid"`
	Ask     decimal.Decimal `json:"ask"`
	Volume  decimal.Decimal `json:"volume"`
	Time    time.Time       `json:"time"`
}

// Account is a read-only balance snapshot for a single currency.
type Account struct {
	ID        string          `json:"id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available"`
	Hold      decimal.Decimal `json:"hold"`
}

type OrderBook struct {
	Sequence int64       `json:"sequence"`
	Bids     []BookLevel `json:"bids"`
	Asks     []BookLevel `json:"asks"`
}

// BookLevel is one aggregated price level. The exchange encodes it as a
// three-element array: [price, size, num_orders].
type BookLevel struct {
	Price     decimal.Decimal
	Size      decimal.Decimal
	NumOrders int64
}

func (l *BookLevel) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("book level: %w", err)
	}
	if len(raw) < 3 {
		return fmt.Errorf("book level: expected 3 elements, got %d", len(raw))
	}
	if err := l.Price.UnmarshalJSON(raw[0]); err != nil {
		return fmt.Errorf("book level price: %w", err)
	}
	if err := l.Size.UnmarshalJSON(raw[1]); err != nil {
		return fmt.Errorf("book level size: %w", err)
	}
	if err := json.Unmarshal(raw[2], &l.NumOrders); err != nil {
		return fmt.Errorf("book level order count: %w", err)
	}
	return nil
}
