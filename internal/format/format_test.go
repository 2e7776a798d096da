package format

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

func TestValue_Thresholds(t *testing.T) {
	tests := []struct {
		name string
		in   any
		cur  model.Currency
		want string
	}{
		{"INR just below crore", 9_999_999, model.CurrencyINR, "₹100.00L"},
		{"INR crore boundary", 10_000_000, model.CurrencyINR, "₹1.00Cr"},
		{"INR 1.25 crore", 12_500_000, model.CurrencyINR, "₹1.25Cr"},
		{"INR 12.5 crore", 125_000_000, model.CurrencyINR, "₹12.50Cr"},
		{"INR lakh", 150_000, model.CurrencyINR, "₹1.50L"},
		{"INR thousand", 2_500, model.CurrencyINR, "₹2.50K"},
		{"INR plain", 999, model.CurrencyINR, "₹999"},
		{"USD just below million", 999_999, model.CurrencyUSD, "$1000.00K"},
		{"USD million boundary", 1_000_000, model.CurrencyUSD, "$1.00M"},
		{"USD billion", 2_340_000_000, model.CurrencyUSD, "$2.34B"},
		{"USD small", 850, model.CurrencyUSD, "$850"},
		{"USD small fraction", 12.3456, model.CurrencyUSD, "$12.346"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(tt.in, true, tt.cur))
		})
	}
}

// WHY: the threshold check runs on the signed value, so large negative amounts stay unscaled.
// This pins the behaviour the dashboard has always had.
func TestValue_NegativeIsNotScaled(t *testing.T) {
	assert.Equal(t, "₹-50,00,000", Value(-5_000_000, true, model.CurrencyINR))
	assert.Equal(t, "$-2,000,000", Value(-2_000_000, true, model.CurrencyUSD))
}

func TestValue_NullSafety(t *testing.T) {
	assert.Equal(t, Placeholder, Value(nil, true, model.CurrencyINR))
	assert.Equal(t, Placeholder, Value(nil, false, model.CurrencyUSD))
	assert.Equal(t, Placeholder, Percent(nil))
	assert.Equal(t, Placeholder, Text(nil))
}

func TestValue_PassThrough(t *testing.T) {
	t.Run("non-numeric string is returned unchanged", func(t *testing.T) {
		assert.Equal(t, "N/A", Value("N/A", true, model.CurrencyINR))
		assert.Equal(t, "₹1.2Cr", Value("₹1.2Cr", true, model.CurrencyINR))
	})

	t.Run("empty string is returned unchanged", func(t *testing.T) {
		assert.Equal(t, "", Value("", false, model.CurrencyUSD))
	})

	t.Run("NaN is not numeric", func(t *testing.T) {
		assert.Equal(t, "NaN", Value(math.NaN(), true, model.CurrencyUSD))
	})

	t.Run("booleans are not numeric", func(t *testing.T) {
		assert.Equal(t, "true", Value(true, false, model.CurrencyUSD))
	})
}

func TestValue_Coercion(t *testing.T) {
	assert.Equal(t, "₹1.25Cr", Value("12500000", true, model.CurrencyINR))
	assert.Equal(t, "$850", Value(json.Number("850"), true, model.CurrencyUSD))
	assert.Equal(t, "$1.50K", Value(decimal.NewFromInt(1500), true, model.CurrencyUSD))
	assert.Equal(t, "₹2.00K", Value(int64(2000), true, model.CurrencyINR))
}

func TestValue_NonCurrencyUsesLocaleGrouping(t *testing.T) {
	assert.Equal(t, "12,34,567.891", Value(1234567.891, false, model.CurrencyINR))
	assert.Equal(t, "1,234,567.891", Value(1234567.891, false, model.CurrencyUSD))
	assert.Equal(t, "1,234.568", Value(1234.5678, false, model.CurrencyUSD))
	assert.Equal(t, "1,00,00,000", Value(10_000_000, false, model.CurrencyINR))
	assert.Equal(t, "0.5", Value(0.5, false, model.CurrencyINR))
	assert.Equal(t, "-1,234", Value(-1234, false, model.CurrencyUSD))
}

func TestNumber_Grouping(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		cur  model.Currency
		want string
	}{
		{"INR three digits", 123, model.CurrencyINR, "123"},
		{"INR thousand", 1234, model.CurrencyINR, "1,234"},
		{"INR ten thousand", 12345, model.CurrencyINR, "12,345"},
		{"INR lakh", 123456, model.CurrencyINR, "1,23,456"},
		{"INR crores", 123456789, model.CurrencyINR, "12,34,56,789"},
		{"INR fraction", 12345678.5, model.CurrencyINR, "1,23,45,678.5"},
		{"INR negative", -5_000_000, model.CurrencyINR, "-50,00,000"},
		{"USD three digits", 999, model.CurrencyUSD, "999"},
		{"USD thousand", 1000, model.CurrencyUSD, "1,000"},
		{"USD millions", 123456789, model.CurrencyUSD, "123,456,789"},
		{"USD rounds to three digits", 12.3456, model.CurrencyUSD, "12.346"},
		{"rounds half away from zero", 0.0025, model.CurrencyUSD, "0.003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Number(tt.in, tt.cur))
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "+1.25%", Percent(1.254))
	assert.Equal(t, "-0.40%", Percent(-0.4))
	assert.Equal(t, "+0.00%", Percent(0))
	assert.Equal(t, "+3.10%", Percent("3.1"))
	assert.Equal(t, "n/a", Percent("n/a"))
}

func TestCell(t *testing.T) {
	assert.Equal(t, "₹1.00Cr", Cell(model.Metric{Value: 1e7, Kind: model.KindCurrency}, model.CurrencyINR))
	assert.Equal(t, "1,000", Cell(model.Metric{Value: 1000, Kind: model.KindNumber}, model.CurrencyUSD))
	assert.Equal(t, "-2.50%", Cell(model.Metric{Value: -2.5, Kind: model.KindPercent}, model.CurrencyUSD))
	assert.Equal(t, "Equity", Cell(model.Metric{Value: "Equity", Kind: model.KindText}, model.CurrencyUSD))
	assert.Equal(t, Placeholder, Cell(model.Metric{Kind: model.KindCurrency}, model.CurrencyUSD))
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "₹", Symbol(model.CurrencyINR))
	assert.Equal(t, "$", Symbol(model.CurrencyUSD))
}
