// internal/money/money.go
package money

import (
	"fmt"
	"strings"
)

// DefaultCurrency matches the storefront region (Canadian dollars).
const DefaultCurrency = "cad"

// currencySymbols maps lowercase ISO currency codes to display symbols.
// Codes without an entry render as an uppercase prefix ("SEK 12.50").
var currencySymbols = map[string]string{
	"cad": "$",
	"usd": "$",
	"eur": "€",
	"gbp": "£",
}

// Format renders an amount in minor currency units as a display string
// in the default storefront currency, e.g. 5995 -> "$59.95".
func Format(amountMinor int64) string {
	return FormatCurrency(amountMinor, DefaultCurrency)
}

// FormatCurrency renders an amount in minor units for the given ISO
// currency code. Negative amounts keep the sign ahead of the symbol.
func FormatCurrency(amountMinor int64, currency string) string {
	code := strings.ToLower(strings.TrimSpace(currency))
	if code == "" {
		code = DefaultCurrency
	}

	sign := ""
	if amountMinor < 0 {
		sign = "-"
		amountMinor = -amountMinor
	}

	major := amountMinor / 100
	minor := amountMinor % 100

	if symbol, ok := currencySymbols[code]; ok {
		return fmt.Sprintf("%s%s%d.%02d", sign, symbol, major, minor)
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, strings.ToUpper(code), major, minor)
}
