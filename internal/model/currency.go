package model

import (
	"fmt"
	"strings"

	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
)

// Currency is the session-wide display currency. It selects the symbol, the locale used for
// digit grouping, and the unit-scaling thresholds.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

// ParseCurrency accepts a currency code in any letter case.
func ParseCurrency(s string) (Currency, error) {
	switch Currency(strings.ToUpper(strings.TrimSpace(s))) {
	case CurrencyINR:
		return CurrencyINR, nil
	case CurrencyUSD:
		return CurrencyUSD, nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidCurrency, s)
}

// Locale returns the BCP 47 tag whose grouping rules apply to the currency.
func (c Currency) Locale() string {
	if c == CurrencyINR {
		return "en-IN"
	}
	return "en-US"
}

func (c Currency) String() string { return string(c) }
