package csvimport

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var currencyReplacer = strings.NewReplacer(
	"$", "",
	"£", "",
	"€", "",
	",", "",
	" ", "",
	" ", "",
)

// ParseAmount converts a raw cell like "$1,234.56", "(45.00)" or "-45.00"
// into a two-decimal fixed-precision value. Parenthesized and trailing-minus
// forms are negative.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = s[:len(s)-1]
	}

	s = currencyReplacer.Replace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("no digits in amount %q", raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return d.Round(2), nil
}

// ParseDate tries each tolerated layout in order until one parses.
func ParseDate(raw string, formats []string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
