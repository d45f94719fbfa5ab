// Package format turns raw market numbers and timestamps into display strings.
package format

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// DefaultDateLayout matches the "MMM dd, yyyy" display used by the dashboard.
const DefaultDateLayout = "Jan 02, 2006"

// Currency formats a USD amount with two fraction digits, e.g. "$1,234.50".
func Currency(v float64) string {
	return CurrencyDigits(v, 2)
}

// CurrencyDigits formats a USD amount with a fixed number of fraction digits.
// Negative amounts render as "-$1,234.50".
func CurrencyDigits(v float64, digits int) string {
	if digits < 0 {
		digits = 0
	}
	d := decimal.NewFromFloat(v).Round(int32(digits))
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + "$" + grouped(d, digits)
}

// grouped renders a non-negative decimal with thousands separators.
func grouped(d decimal.Decimal, digits int) string {
	fixed := d.StringFixed(int32(digits))
	intPart, frac, hasFrac := strings.Cut(fixed, ".")
	out := humanize.Comma(decimal.RequireFromString(intPart).IntPart())
	if hasFrac {
		out += "." + frac
	}
	return out
}

// Percentage formats a percent change with two decimals and an explicit "+"
// for positive values, e.g. "+1.23%" or "-3.46%".
func Percentage(v float64) string {
	return PercentageDigits(v, 2)
}

// PercentageDigits is Percentage with a custom number of decimals.
func PercentageDigits(v float64, decimals int) string {
	prefix := ""
	if v > 0 {
		prefix = "+"
	}
	return prefix + fixed(v, decimals) + "%"
}

// MarketCap abbreviates a dollar magnitude with T/B/M/K suffixes.
func MarketCap(v float64) string {
	switch {
	case v >= 1e12:
		return "$" + fixed(v/1e12, 2) + "T"
	case v >= 1e9:
		return "$" + fixed(v/1e9, 2) + "B"
	case v >= 1e6:
		return "$" + fixed(v/1e6, 2) + "M"
	case v >= 1e3:
		return "$" + fixed(v/1e3, 2) + "K"
	default:
		return "$" + fixed(v, 2)
	}
}

// Volume is MarketCap under another name; both are dollar magnitudes.
func Volume(v float64) string {
	return MarketCap(v)
}

// Supply abbreviates a coin supply without a currency sign.
func Supply(v float64) string {
	switch {
	case v >= 1e9:
		return fixed(v/1e9, 2) + "B"
	case v >= 1e6:
		return fixed(v/1e6, 2) + "M"
	case v >= 1e3:
		return fixed(v/1e3, 2) + "K"
	default:
		return fixed(v, 0)
	}
}

// Number renders v rounded to an integer with thousands separators.
func Number(v float64) string {
	return humanize.Comma(decimal.NewFromFloat(v).Round(0).IntPart())
}

// Date formats t with a Go layout; an empty layout uses DefaultDateLayout.
func Date(t time.Time, layout string) string {
	if layout == "" {
		layout = DefaultDateLayout
	}
	return t.Format(layout)
}

// TimeAgo describes t relative to now, e.g. "2 hours ago".
func TimeAgo(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// ChangeDirection classifies a change value as "positive", "negative" or "neutral".
func ChangeDirection(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return "neutral"
	}
}

// TruncateAddress shortens long identifiers to "head...tail".
func TruncateAddress(addr string, start, end int) string {
	if len(addr) <= start+end {
		return addr
	}
	return addr[:start] + "..." + addr[len(addr)-end:]
}

// Truncate shortens s to at most n characters, ending in "…" when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func fixed(v float64, decimals int) string {
	return decimal.NewFromFloat(v).StringFixed(int32(decimals))
}
