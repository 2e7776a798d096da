// Package kpi builds the headline cards shown on the panel pages from the first row of a panel
// dataset.
package kpi

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-dashboard/internal/format"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

// DateLayout is how the last update date is shown.
const DateLayout = "02 Jan 2006"

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ReturnCards lists the return cards in display order.
var ReturnCards = []struct {
	Title string
	Key   string
}{
	{"Daily Return (%)", "daily_return_pct"},
	{"3-Day Return (%)", "3d_return_pct"},
	{"1-Week Return (%)", "1w_return_pct"},
	{"Month-to-Date Return (%)", "mtd_return_pct"},
	{"FYTD Return (%)", "fytd_return_pct"},
}

// Card is one return card.
type Card struct {
	Title    string   `json:"title"`
	Key      string   `json:"key"`
	Value    *float64 `json:"value"`
	Display  string   `json:"display"`
	Negative bool     `json:"negative"`
}

// Summary is the KPI block of a panel.
type Summary struct {
	Empty       bool   `json:"empty"`
	TodayTotal  string `json:"today_total"`
	TodayChange string `json:"today_change"`
	LastUpdated string `json:"last_updated"`
	Returns     []Card `json:"returns"`
}

// Build derives the KPI summary from the first row of rows.
func Build(rows []model.RawRow, cur model.Currency) Summary {
	if len(rows) == 0 {
		return Summary{
			Empty:       true,
			TodayTotal:  format.Placeholder,
			TodayChange: "0.00",
			LastUpdated: format.Placeholder,
			Returns:     []Card{},
		}
	}
	first := rows[0]

	s := Summary{
		TodayTotal:  format.Value(first["today_total"], true, cur),
		TodayChange: TodayChange(first["today_total"], first["yesterday_total"]),
		LastUpdated: LastUpdated(first["latest_date"]),
		Returns:     make([]Card, 0, len(ReturnCards)),
	}
	for _, rc := range ReturnCards {
		c := Card{Title: rc.Title, Key: rc.Key, Display: format.Placeholder}
		if n, ok := format.ToFloat(first[rc.Key]); ok {
			c.Value = &n
			c.Negative = n < 0
			c.Display = decimal.NewFromFloat(n).StringFixed(3) + "%"
		}
		s.Returns = append(s.Returns, c)
	}
	return s
}

// TodayChange is today minus yesterday with two decimals, or "0.00" when either side is missing
// or zero.
func TodayChange(today, yesterday any) string {
	t, okT := format.ToFloat(today)
	y, okY := format.ToFloat(yesterday)
	if !okT || !okY || t == 0 || y == 0 {
		return "0.00"
	}
	return decimal.NewFromFloat(t).Sub(decimal.NewFromFloat(y)).StringFixed(2)
}

// LastUpdated renders a backend date as "02 Jan 2006". Unparseable dates are returned as given.
func LastUpdated(v any) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return format.Placeholder
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout)
		}
	}
	return s
}
