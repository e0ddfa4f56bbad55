package formatting

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Separator returns a line separator of given width
func Separator(width int) string {
	return strings.Repeat("=", width)
}

func Rule(width int) string {
	return strings.Repeat("-", width)
}

// Money formats v as a dollar amount with two decimals.
func Money(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// PnL shows a stored pnl (buy value minus sell value) as the operator reads
// it: gains positive, losses negative.
func PnL(stored float64) string {
	d := decimal.NewFromFloat(stored).Neg().Round(2)
	if d.IsPositive() {
		return "+" + Money(d.InexactFloat64())
	}
	return Money(d.InexactFloat64())
}

// ParseDate parses a date string in multiple formats
func ParseDate(dateStr string) time.Time {
	formats := []string{
		"2006-01-02", // YYYY-MM-DD (standard)
		"02/01/2006", // DD/MM/YYYY
		"02.01.2006", // DD.MM.YYYY
		"01-02-2006", // MM-DD-YYYY (US format)
	}

	for _, format := range formats {
		if t, err := time.Parse(format, strings.TrimSpace(dateStr)); err == nil {
			return t
		}
	}

	return time.Time{}
}
