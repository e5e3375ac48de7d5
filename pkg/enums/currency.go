package enums

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 code accepted for prices and orders.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

var validCurrencies = []Currency{
	CurrencyUSD,
	CurrencyEUR,
	CurrencyGBP,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts a raw string into a Currency. Provider payloads use
// upper case codes but lower case input is tolerated.
func ParseCurrency(value string) (Currency, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validCurrencies {
		if string(candidate) == upper {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}

// ParseISOCurrency accepts any three letter ISO 4217 code, upper-cased. Order
// rows store whatever the payment provider settled in, which may fall outside
// the catalog currencies.
func ParseISOCurrency(value string) (Currency, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	if len(upper) != 3 {
		return "", fmt.Errorf("invalid currency %q", value)
	}
	for _, r := range upper {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("invalid currency %q", value)
		}
	}
	return Currency(upper), nil
}
