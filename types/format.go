package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency renders an amount in pesos using the es-AR convention:
// "." groups thousands, "," separates two decimal places.
//
//	FormatCurrency(decimal.RequireFromString("1234.5")) // "$ 1.234,50"
func FormatCurrency(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	return sign + "$ " + groupThousands(whole, '.') + "," + frac
}

// FormatKilos renders a weight with two decimals, e.g. "12.35 kg".
func FormatKilos(d decimal.Decimal) string {
	return d.StringFixed(2) + " kg"
}

func groupThousands(digits string, sep byte) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(digits[i : i+3])
	}

	return b.String()
}
