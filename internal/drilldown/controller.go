package drilldown

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/projector"
	"github.com/ndewijer/portfolio-dashboard/internal/schema"
)

type flight struct {
	token      uint64
	generation uint64
	cancel     context.CancelFunc
}

// Controller sequences the drill-down transitions of one table instance.
//
// Every reset (dimension, currency, refresh) bumps the generation. A fetch records the generation
// and a per-path token when it starts, and its result is applied only if both still match when it
// returns; anything else is discarded with ErrStaleResponse. All fetches run under a context tied
// to the controller's lifetime, so Close cancels them.
type Controller struct {
	table   *schema.Table
	fetcher *LevelFetcher
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	dims       schema.Dimensions
	scope      Scope
	generation uint64
	nextToken  uint64
	state      *ExpansionState
	inflight   map[string]*flight
	root       []model.DisplayRow
	rootErr    error
	rootLoaded bool
	headers    []string
	summary    *model.DisplayRow

	// rootFlights holds the cancel funcs of root loads of the current generation.
	rootFlights map[uint64]context.CancelFunc
	loads       singleflight.Group
}

// NewController creates a controller for fetcher's table. dims must be valid for the table.
func NewController(fetcher *LevelFetcher, dims schema.Dimensions, scope Scope, log zerolog.Logger) (*Controller, error) {
	tbl := fetcher.Table()
	if err := tbl.ValidateDimensions(dims); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		table:    tbl,
		fetcher:  fetcher,
		log:      log.With().Str("component", "drilldown").Str("table", tbl.ID).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		dims:     dims,
		scope:    scope,
		state:    NewExpansionState(),
		inflight: make(map[string]*flight),
		headers:  tbl.Labels(),

		rootFlights: make(map[uint64]context.CancelFunc),
	}, nil
}

// Table returns the controller's schema.
func (c *Controller) Table() *schema.Table { return c.table }

// Dimensions returns the active dimension pair.
func (c *Controller) Dimensions() schema.Dimensions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dims
}

// Currency returns the currency the cached figures were fetched in.
func (c *Controller) Currency() model.Currency {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope.Currency
}

// Loaded reports whether the root level has been fetched at least once for the current
// generation.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rootLoaded
}

// SetCookie replaces the credential forwarded to the backend. Cached data is kept.
func (c *Controller) SetCookie(cookie string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope.Cookie = cookie
}

// Load fetches the root level (and the summary row, when missing) for the current generation.
// Concurrent loads of one generation share a single fetch; each caller stops waiting when its own
// context ends.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrControllerClosed
	}
	gen := c.generation
	c.mu.Unlock()

	ch := c.loads.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return nil, c.loadRoot(gen)
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loadRoot runs one root fetch for generation gen under the controller's context.
func (c *Controller) loadRoot(gen uint64) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrControllerClosed
	}
	if c.generation != gen {
		c.mu.Unlock()
		return apperrors.ErrStaleResponse
	}
	dims, scope := c.dims, c.scope
	wantSummary := c.table.Summary != nil && c.summary == nil
	fctx, done := context.WithCancel(c.ctx)
	defer done()
	c.nextToken++
	token := c.nextToken
	c.rootFlights[token] = done
	c.mu.Unlock()

	if scope.ScopeID == "" {
		scope.ScopeID = c.fetcher.ResolveScope(fctx, scope)
	}
	res := c.fetcher.FetchLevel(fctx, nil, dims, scope)
	var sum Result
	if wantSummary {
		sum = c.fetcher.FetchSummary(fctx, scope)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return apperrors.ErrControllerClosed
	}
	if c.generation != gen {
		return apperrors.ErrStaleResponse
	}
	delete(c.rootFlights, token)
	c.scope.ScopeID = scope.ScopeID
	c.root = res.Rows
	c.rootErr = res.Err
	c.rootLoaded = true
	c.storeMembersLocked(nil, res.Members)
	c.updateHeaders(res.Rows)
	if wantSummary && sum.OK() && len(sum.Rows) > 0 {
		row := sum.Rows[0]
		c.summary = &row
	}
	if res.Err != nil {
		return fmt.Errorf("%w: %s root: %v", apperrors.ErrFailedToRetrieve, c.table.ID, res.Err)
	}
	return nil
}

// Toggle expands a collapsed row or collapses an expanded or loading one.
func (c *Controller) Toggle(ctx context.Context, path model.DrillPath) (model.RowState, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.RowCollapsed, apperrors.ErrControllerClosed
	}
	_, loading := c.inflight[path.Key()]
	expanded := c.state.IsExpanded(path)
	c.mu.Unlock()

	if loading || expanded {
		return c.Collapse(path)
	}
	return c.Expand(ctx, path)
}

// Expand shows the children of path. Expanding an expanded path is a no-op, a cached path needs no
// fetch, and a path already loading is not fetched twice. An empty result leaves the row expanded
// with no children; a failed fetch leaves it collapsed and returns the fetch error.
func (c *Controller) Expand(ctx context.Context, path model.DrillPath) (model.RowState, error) {
	key := path.Key()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.RowCollapsed, apperrors.ErrControllerClosed
	}
	if err := c.checkPathLocked(path); err != nil {
		c.mu.Unlock()
		return model.RowCollapsed, err
	}
	if c.state.IsExpanded(path) {
		c.mu.Unlock()
		return model.RowExpanded, nil
	}
	if _, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		return model.RowLoading, nil
	}
	if _, ok := c.state.Cached(path); ok {
		c.state.SetExpanded(path)
		c.mu.Unlock()
		return model.RowExpanded, nil
	}

	fctx, done := c.fetchContext(ctx)
	c.nextToken++
	f := &flight{token: c.nextToken, generation: c.generation, cancel: done}
	c.inflight[key] = f
	dims, scope := c.dims, c.scope
	c.mu.Unlock()

	res := c.fetcher.FetchLevel(fctx, path, dims, scope)

	c.mu.Lock()
	defer c.mu.Unlock()
	done()

	if c.closed {
		return model.RowCollapsed, apperrors.ErrControllerClosed
	}
	current, ok := c.inflight[key]
	if !ok || current.token != f.token || c.generation != f.generation {
		c.log.Debug().Strs("path", path).Msg("Discarding stale drill response")
		return c.stateLocked(path), apperrors.ErrStaleResponse
	}
	delete(c.inflight, key)

	if !res.OK() {
		return model.RowCollapsed, res.Err
	}
	c.state.Store(path, res.Rows)
	c.storeMembersLocked(path, res.Members)
	c.state.SetExpanded(path)
	c.updateHeaders(res.Rows)
	return model.RowExpanded, nil
}

// Collapse hides the children of path and cancels its fetch, if any. The cache entry is kept.
func (c *Controller) Collapse(path model.DrillPath) (model.RowState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return model.RowCollapsed, apperrors.ErrControllerClosed
	}
	key := path.Key()
	if f, ok := c.inflight[key]; ok {
		f.cancel()
		delete(c.inflight, key)
	}
	c.state.SetCollapsed(path)
	return model.RowCollapsed, nil
}

// OnDimensionChanged switches the dimension pair, clears every expanded path and cached level, and
// refetches the root. The summary row is kept because it does not depend on the dimensions.
// Selecting the active pair again does nothing.
func (c *Controller) OnDimensionChanged(ctx context.Context, dims schema.Dimensions) error {
	if err := c.table.ValidateDimensions(dims); err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrControllerClosed
	}
	if c.dims == dims && c.rootLoaded {
		c.mu.Unlock()
		return nil
	}
	c.dims = dims
	c.resetLocked(false)
	c.mu.Unlock()

	return c.Load(ctx)
}

// OnCurrencyChanged switches the currency and invalidates everything fetched so far, the summary
// row included, then refetches the root.
func (c *Controller) OnCurrencyChanged(ctx context.Context, cur model.Currency) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrControllerClosed
	}
	c.scope.Currency = cur
	c.resetLocked(true)
	c.mu.Unlock()

	return c.Load(ctx)
}

// Refresh discards all fetched data and reloads the root. It is the retry path after a failed
// root fetch.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrControllerClosed
	}
	c.resetLocked(true)
	c.mu.Unlock()

	return c.Load(ctx)
}

// Close cancels every in-flight fetch. All later calls return ErrControllerClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	clear(c.inflight)
}

// State reports the expansion state of path.
func (c *Controller) State(path model.DrillPath) model.RowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked(path)
}

// Children returns the cached children of path.
func (c *Controller) Children(path model.DrillPath) ([]model.DisplayRow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.state.Cached(path)
	if !ok {
		return nil, false
	}
	return append([]model.DisplayRow(nil), rows...), true
}

// CachedLevels is the number of cached child levels.
func (c *Controller) CachedLevels() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CacheLen()
}

// ExpandedPaths returns every expanded path, shallowest first.
func (c *Controller) ExpandedPaths() []model.DrillPath {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Expanded()
}

func (c *Controller) stateLocked(path model.DrillPath) model.RowState {
	if _, ok := c.inflight[path.Key()]; ok {
		return model.RowLoading
	}
	if c.state.IsExpanded(path) {
		return model.RowExpanded
	}
	return model.RowCollapsed
}

// resetLocked cancels in-flight fetches, clears expansion state, and starts a new generation.
func (c *Controller) resetLocked(dropSummary bool) {
	for _, f := range c.inflight {
		f.cancel()
	}
	clear(c.inflight)
	for _, cancel := range c.rootFlights {
		cancel()
	}
	clear(c.rootFlights)
	c.state.Reset()
	c.generation++
	c.root = nil
	c.rootErr = nil
	c.rootLoaded = false
	if dropSummary {
		c.summary = nil
	}
}

// checkPathLocked verifies that path names a row that is currently known and that its level has
// children.
func (c *Controller) checkPathLocked(path model.DrillPath) error {
	if path.Depth() == 0 {
		return fmt.Errorf("%w: empty path", apperrors.ErrInvalidPath)
	}
	parent := path[:len(path)-1]
	siblings := c.root
	if parent.Depth() > 0 {
		rows, ok := c.state.Cached(parent)
		if !ok {
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidPath, []string(path))
		}
		siblings = rows
	}
	last := path[len(path)-1]
	for _, r := range siblings {
		if r.Key == last {
			if !c.table.HasLevel(c.dims, path.Depth()) {
				return fmt.Errorf("%w: %s", apperrors.ErrNoDeeperLevel, r.Name)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %v", apperrors.ErrInvalidPath, []string(path))
}

// storeMembersLocked caches the members of grouped rows under parent so expanding a group needs no
// fetch.
func (c *Controller) storeMembersLocked(parent model.DrillPath, members map[string][]model.DisplayRow) {
	for key, rows := range members {
		c.state.Store(parent.Child(key), rows)
	}
}

// updateHeaders keeps the previous headers when a batch is empty.
func (c *Controller) updateHeaders(rows []model.DisplayRow) {
	if h := projector.Headers(rows); h != nil {
		c.headers = h
	}
}

// fetchContext derives a fetch context that ends when the caller's context ends, when the
// controller closes, or when the returned cancel is called.
func (c *Controller) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	fctx, cancel := context.WithCancel(c.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return fctx, func() {
		stop()
		cancel()
	}
}
