// Package money converts between integer minor units and display strings.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/craftmart/craftmart-backend/pkg/enums"
)

var symbols = map[enums.Currency]string{
	enums.CurrencyUSD: "$",
	enums.CurrencyEUR: "€",
	enums.CurrencyGBP: "£",
}

// FromCents returns the major-unit decimal for an amount in cents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

// ToCents parses a major-unit amount ("19.99") into cents. More than two
// fractional digits are rejected rather than rounded.
func ToCents(amount string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	shifted := d.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has sub-cent precision", amount)
	}
	return shifted.IntPart(), nil
}

// Format renders cents as a price label, e.g. "$12.50".
func Format(cents int64, currency enums.Currency) string {
	value := FromCents(cents).StringFixed(2)
	if sym, ok := symbols[currency]; ok {
		if strings.HasPrefix(value, "-") {
			return "-" + sym + strings.TrimPrefix(value, "-")
		}
		return sym + value
	}
	return value + " " + string(currency)
}

// LineTotal multiplies a unit price by a quantity.
func LineTotal(unitCents int64, quantity int) int64 {
	return unitCents * int64(quantity)
}
