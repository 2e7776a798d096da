// Package drilldown owns the per-table drill-down state: the level fetcher, the expansion cache,
// the controller that sequences expand/collapse/reset transitions, and the replace-in-place
// navigator used by the breakdown chart.
package drilldown

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/projector"
	"github.com/ndewijer/portfolio-dashboard/internal/schema"
	"github.com/ndewijer/portfolio-dashboard/internal/upstream"
)

// RowSource fetches raw rows from the backend. *upstream.Client implements it.
type RowSource interface {
	FetchRows(ctx context.Context, r upstream.Request) ([]model.RawRow, error)
}

// Scope carries the session values substituted into endpoint templates.
type Scope struct {
	ClientID  string
	AccountID string
	Pan       string
	// ScopeID is the table scope. Tables with a scope endpoint resolve it on first load;
	// the others use AccountID.
	ScopeID  string
	Cookie   string
	Currency model.Currency
}

// Result is the tagged outcome of one level fetch. A failed fetch and an empty one both carry no
// rows; only Err tells them apart.
type Result struct {
	Rows []model.DisplayRow
	// Members holds the children of each row of a grouped level, keyed by row key.
	Members map[string][]model.DisplayRow
	Err     error
}

// OK reports whether the fetch succeeded, possibly with zero rows.
func (r Result) OK() bool { return r.Err == nil }

// LevelFetcher maps a drill path to its endpoint and returns projected rows.
type LevelFetcher struct {
	source RowSource
	table  *schema.Table
	log    zerolog.Logger
}

// NewLevelFetcher creates a fetcher for one table.
func NewLevelFetcher(source RowSource, table *schema.Table, log zerolog.Logger) *LevelFetcher {
	return &LevelFetcher{
		source: source,
		table:  table,
		log:    log.With().Str("table", table.ID).Logger(),
	}
}

// Table returns the schema this fetcher serves.
func (f *LevelFetcher) Table() *schema.Table { return f.table }

// FetchLevel fetches the rows produced by path under dims. Failures are logged and returned as a
// tagged Result; they never panic or escape as a bare error.
func (f *LevelFetcher) FetchLevel(ctx context.Context, path model.DrillPath, dims schema.Dimensions, scope Scope) Result {
	lvl, err := f.table.Level(dims, path.Depth())
	if err != nil {
		return Result{Err: err}
	}

	req := BuildRequest(lvl.Endpoint, lvl.Envelope, lvl.CurrencyQuery, path, scope)
	if lvl.DimensionQuery {
		if req.Query == nil {
			req.Query = url.Values{}
		}
		req.Query.Set("allocationBy", dims.Allocation)
		req.Query.Set("distributionBy", dims.Distribution)
	}
	raws, err := f.source.FetchRows(ctx, req)
	if err != nil {
		f.logFailure(ctx, err, path.Depth(), req.Path)
		return Result{Err: err}
	}
	if lvl.GroupBy != "" {
		rows, members := projector.ProjectGroups(raws, f.table, lvl, path)
		return Result{Rows: rows, Members: members}
	}
	return Result{Rows: projector.ProjectAll(raws, f.table, lvl, path)}
}

// FetchSummary fetches the table's summary pseudo-row. A table without one yields an empty
// successful result.
func (f *LevelFetcher) FetchSummary(ctx context.Context, scope Scope) Result {
	s := f.table.Summary
	if s == nil {
		return Result{}
	}
	req := BuildRequest(s.Endpoint, s.Envelope, s.CurrencyQuery, nil, scope)
	raws, err := f.source.FetchRows(ctx, req)
	if err != nil {
		f.logFailure(ctx, err, -1, req.Path)
		return Result{Err: err}
	}
	if len(raws) == 0 {
		return Result{}
	}
	return Result{Rows: []model.DisplayRow{projector.ProjectSummary(raws[0], f.table)}}
}

// ResolveScope returns the id substituted for {scope}. When the table names a scope endpoint the
// first row's scope field is used; any failure falls back to the session account.
func (f *LevelFetcher) ResolveScope(ctx context.Context, scope Scope) string {
	if f.table.ScopeEndpoint == "" {
		return scope.AccountID
	}
	req := BuildRequest(f.table.ScopeEndpoint, "", false, nil, scope)
	raws, err := f.source.FetchRows(ctx, req)
	if err != nil {
		f.logFailure(ctx, err, -1, req.Path)
		return scope.AccountID
	}
	if len(raws) == 0 {
		return scope.AccountID
	}
	if v, ok := raws[0][f.table.ScopeField]; ok && v != nil {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
	}
	return scope.AccountID
}

func (f *LevelFetcher) logFailure(ctx context.Context, err error, depth int, path string) {
	// Cancellation is the expected outcome of a collapse or teardown.
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		f.log.Debug().Int("depth", depth).Str("endpoint", path).Msg("Fetch cancelled")
		return
	}
	f.log.Warn().Err(err).Int("depth", depth).Str("endpoint", path).Msg("Level fetch failed")
}

// BuildRequest expands an endpoint template for path and scope.
func BuildRequest(endpoint, envelope string, currencyQuery bool, path model.DrillPath, scope Scope) upstream.Request {
	req := upstream.Request{
		Path:     Expand(endpoint, path, scope),
		Cookie:   scope.Cookie,
		Envelope: envelope,
	}
	if currencyQuery && scope.Currency != "" {
		req.Query = url.Values{"currency": {scope.Currency.String()}}
	}
	return req
}

// Expand substitutes the session placeholders and positional path segments into template.
// Every substituted value is path-escaped.
func Expand(template string, path model.DrillPath, scope Scope) string {
	scopeID := scope.ScopeID
	if scopeID == "" {
		scopeID = scope.AccountID
	}
	pairs := []string{
		"{client}", url.PathEscape(scope.ClientID),
		"{account}", url.PathEscape(scope.AccountID),
		"{pan}", url.PathEscape(scope.Pan),
		"{scope}", url.PathEscape(scopeID),
	}
	for i, seg := range path {
		pairs = append(pairs, fmt.Sprintf("{p%d}", i), url.PathEscape(seg))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
