// Package format renders raw upstream amounts as display strings for a session currency.
//
// Monetary values are unit-scaled (Cr/L/K for INR, B/M/K for USD) with two decimals; all other
// numbers use the currency's locale grouping with at most three fraction digits. Values that are
// missing render as Placeholder and values that are not numeric are returned unchanged.
package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

// Placeholder is shown for absent values.
const Placeholder = "—"

type unit struct {
	threshold float64
	divisor   decimal.Decimal
	suffix    string
}

// Thresholds are checked largest first; the first match wins.
var units = map[model.Currency][]unit{
	model.CurrencyINR: {
		{threshold: 1e7, divisor: decimal.NewFromInt(10_000_000), suffix: "Cr"},
		{threshold: 1e5, divisor: decimal.NewFromInt(100_000), suffix: "L"},
		{threshold: 1e3, divisor: decimal.NewFromInt(1_000), suffix: "K"},
	},
	model.CurrencyUSD: {
		{threshold: 1e9, divisor: decimal.NewFromInt(1_000_000_000), suffix: "B"},
		{threshold: 1e6, divisor: decimal.NewFromInt(1_000_000), suffix: "M"},
		{threshold: 1e3, divisor: decimal.NewFromInt(1_000), suffix: "K"},
	},
}

// Value formats v for display.
//
// The threshold comparison uses the signed value, so negative amounts are never unit-scaled:
// -5,000,000 INR renders as "₹-50,00,000".
func Value(v any, isCurrency bool, cur model.Currency) string {
	if v == nil {
		return Placeholder
	}
	n, ok := ToFloat(v)
	if !ok {
		return passThrough(v)
	}
	if !isCurrency {
		return Number(n, cur)
	}

	sym := Symbol(cur)
	for _, u := range units[cur] {
		if n >= u.threshold {
			return sym + decimal.NewFromFloat(n).Div(u.divisor).StringFixed(2) + u.suffix
		}
	}
	return sym + Number(n, cur)
}

// Percent renders a signed return with two decimals, e.g. "+1.25%" or "-0.40%".
func Percent(v any) string {
	if v == nil {
		return Placeholder
	}
	n, ok := ToFloat(v)
	if !ok {
		return passThrough(v)
	}
	sign := ""
	if n >= 0 {
		sign = "+"
	}
	return sign + decimal.NewFromFloat(n).StringFixed(2) + "%"
}

// Text renders a value verbatim, substituting the placeholder for nil.
func Text(v any) string {
	if v == nil {
		return Placeholder
	}
	return passThrough(v)
}

// Cell renders a projected metric according to its column kind.
func Cell(m model.Metric, cur model.Currency) string {
	switch m.Kind {
	case model.KindCurrency:
		return Value(m.Value, true, cur)
	case model.KindNumber:
		return Value(m.Value, false, cur)
	case model.KindPercent:
		return Percent(m.Value)
	default:
		return Text(m.Value)
	}
}

// Symbol returns the currency grapheme ("₹", "$").
func Symbol(cur model.Currency) string {
	if c := money.GetCurrency(string(cur)); c != nil && c.Grapheme != "" {
		return c.Grapheme
	}
	return "$"
}

// Number renders n with the currency locale's digit grouping (12,34,567 for en-IN, 1,234,567 for
// en-US) and up to three fraction digits, rounded half away from zero.
func Number(n float64, cur model.Currency) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	rounded := decimal.NewFromFloat(n).Round(3).InexactFloat64()
	p := message.NewPrinter(language.Make(cur.Locale()))
	return p.Sprint(number.Decimal(rounded, number.MaxFractionDigits(3)))
}

// ToFloat coerces upstream values the way the backend's consumers always have: numbers pass,
// numeric strings parse, everything else (including NaN and infinities) is not numeric.
func ToFloat(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case uint:
		n = float64(t)
	case uint32:
		n = float64(t)
	case uint64:
		n = float64(t)
	case decimal.Decimal:
		n = t.InexactFloat64()
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func passThrough(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
