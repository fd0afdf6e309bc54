// Package format renders plan figures for people.
package format

import (
	"fmt"
	"math"
	"strings"
)

// Currency returns an amount prefixed with symbol, with thousands separators
// (e.g., "-Rs 1,234.56"). An empty symbol yields the bare amount.
func Currency(symbol string, amount float64) string {
	formatted := formatPositiveCurrency(math.Abs(amount))
	if symbol != "" {
		formatted = symbol + " " + formatted
	}
	if amount < 0 {
		return "-" + formatted
	}
	return formatted
}

// NumericCurrency returns a currency string without a currency symbol but with separators (e.g., "-1,234.56").
func NumericCurrency(amount float64) string {
	return Currency("", amount)
}

// Rating formats a rating total to two decimals.
func Rating(rating float64) string {
	return fmt.Sprintf("%.2f", rating)
}

// Percent formats a percentage to two decimals with a trailing sign.
func Percent(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

// CPRP formats a cost per rating point; nil means the plan earned no rating.
func CPRP(cprp *float64) string {
	if cprp == nil {
		return "n/a"
	}
	return NumericCurrency(*cprp)
}

func formatPositiveCurrency(value float64) string {
	formatted := fmt.Sprintf("%.2f", value)
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "." + decPart
}
