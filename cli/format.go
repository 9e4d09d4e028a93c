// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/benschem/safelyspend-sub000/engine"
)

// FormatCents formats cents as dollars with thousands separators.
// e.g., 123456 -> "$1,234.56", -5 -> "-$0.05"
func FormatCents(c engine.Cents) string {
	if c < 0 {
		return "-" + FormatCents(-c)
	}
	dollars, cents := int64(c)/100, int64(c)%100
	return "$" + FormatNumber(dollars) + "." + leftPad(strconv.FormatInt(cents, 10), 2)
}

// FormatOptionalCents renders nil as "n/a".
func FormatOptionalCents(c *engine.Cents) string {
	if c == nil {
		return "n/a"
	}
	return FormatCents(*c)
}

// FormatDelta formats a change with an explicit sign. Zero is "-".
func FormatDelta(c engine.Cents) string {
	switch {
	case c > 0:
		return "+" + FormatCents(c)
	case c < 0:
		return FormatCents(c)
	default:
		return "-"
	}
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a percentage (already 0-100) with one decimal.
func FormatPercent(p decimal.Decimal) string {
	return p.StringFixed(1) + "%"
}

// FormatMonths renders a month count as "1y 3m" style text.
func FormatMonths(n int) string {
	switch {
	case n <= 0:
		return "now"
	case n < 12:
		return strconv.Itoa(n) + "m"
	case n%12 == 0:
		return strconv.Itoa(n/12) + "y"
	default:
		return strconv.Itoa(n/12) + "y " + strconv.Itoa(n%12) + "m"
	}
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
