package models

import (
	"github.com/shopspring/decimal"
)

// Fractional digit counts used throughout: order sizes and BTC amounts
// are rendered with 8 digits, USD amounts with 2.
const (
	BTCPlaces = 8
	USDPlaces = 2
)

// FormatAmount renders d with exactly places fractional digits. Excess
// precision is truncated toward zero first, so a formatted value never
// drifts above the original.
func FormatAmount(d decimal.Decimal, places int32) string {
	return d.Truncate(places).StringFixed(places)
}

// FormatBTC renders a BTC-denominated amount with 8 fractional digits.
func FormatBTC(d decimal.Decimal) string {
	return FormatAmount(d, BTCPlaces)
}

// FormatUSD renders a USD-denominated amount with 2 fractional digits.
func FormatUSD(d decimal.Decimal) string {
	return FormatAmount(d, USDPlaces)
}

// ParseAmount parses a decimal string as sent by the exchange.
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
