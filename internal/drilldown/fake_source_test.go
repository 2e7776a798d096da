package drilldown

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/schema"
	"github.com/ndewijer/portfolio-dashboard/internal/upstream"
)

// fakeSource serves canned rows per escaped path and can hold a path open until released.
type fakeSource struct {
	mu        sync.Mutex
	responses map[string][]model.RawRow
	errs      map[string]error
	calls     map[string]int
	queries   map[string]url.Values
	gates     map[string]chan struct{}
	// ignoreCtx makes gated requests wait for their gate even after cancellation, modelling a
	// response that arrives late.
	ignoreCtx bool
	entered   chan string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		responses: make(map[string][]model.RawRow),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
		queries:   make(map[string]url.Values),
		gates:     make(map[string]chan struct{}),
		entered:   make(chan string, 8),
	}
}

func (f *fakeSource) set(path string, rows ...model.RawRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rows == nil {
		rows = []model.RawRow{}
	}
	f.responses[path] = rows
	delete(f.errs, path)
}

func (f *fakeSource) fail(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[path] = err
}

func (f *fakeSource) gate(path string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[path] = ch
	return ch
}

func (f *fakeSource) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeSource) query(path string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[path]
}

func (f *fakeSource) FetchRows(ctx context.Context, r upstream.Request) ([]model.RawRow, error) {
	f.mu.Lock()
	f.calls[r.Path]++
	f.queries[r.Path] = r.Query
	gate := f.gates[r.Path]
	rows, known := f.responses[r.Path]
	err := f.errs[r.Path]
	f.mu.Unlock()

	if gate != nil {
		f.entered <- r.Path
		if f.ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if !known {
		return []model.RawRow{}, nil
	}
	return rows, nil
}

func testTable(t *testing.T, id string) *schema.Table {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)
	tbl, err := reg.Table(id)
	require.NoError(t, err)
	return tbl
}

func testScope() Scope {
	return Scope{ClientID: "C1", AccountID: "ACC", Pan: model.PanAll, Currency: model.CurrencyINR}
}

// allocationSource seeds the endpoints the allocation table hits under its default dimensions.
func allocationSource() *fakeSource {
	src := newFakeSource()
	src.set("/filter/accounts/ACC", model.RawRow{"account_id": "S1", "account_name": "Main"})
	src.set("/asset-classes/S1",
		model.RawRow{"asset_class": "Equity", "today_total": 12_500_000.0, "daily_return_pct": 0.42},
		model.RawRow{"asset_class": "Debt", "today_total": 850.0},
	)
	src.set("/filter/accounts/S1", model.RawRow{"account_name": "Main", "today_total": 150_000.0})
	src.set("/pan-summary1/C1", model.RawRow{"today_total": 20_000_000.0})
	return src
}

// equitySource seeds the grouped holdings endpoint of the equity table.
func equitySource() *fakeSource {
	src := newFakeSource()
	src.set("/data",
		model.RawRow{"allocation_by_name": "Equity", "name": "Infosys", "market_value": 1_500_000.0, "twrr_itd": 12.5},
		model.RawRow{"allocation_by_name": "Debt", "name": "GSec 2030", "market_value": 900.0},
		model.RawRow{"allocation_by_name": "Equity", "name": "TCS", "market_value": 2_500.0},
	)
	return src
}

func newTestController(t *testing.T, src *fakeSource, table string) *Controller {
	t.Helper()
	tbl := testTable(t, table)
	c, err := NewController(NewLevelFetcher(src, tbl, zerolog.Nop()), tbl.Defaults, testScope(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}
