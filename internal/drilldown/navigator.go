package drilldown

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
	"github.com/ndewijer/portfolio-dashboard/internal/format"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/schema"
)

// TotalMode selects what Navigator.Total sums.
type TotalMode string

const (
	TotalValue      TotalMode = "value"
	TotalPercentage TotalMode = "percentage"
)

// ParseTotalMode defaults to TotalValue for anything but "percentage".
func ParseTotalMode(s string) TotalMode {
	if TotalMode(s) == TotalPercentage {
		return TotalPercentage
	}
	return TotalValue
}

type frame struct {
	path model.DrillPath
	rows []model.DisplayRow
}

// Navigator is a replace-in-place drill-down: drilling into a slice swaps the visible level for its
// children and pushes the previous level on a history stack.
type Navigator struct {
	table   *schema.Table
	fetcher *LevelFetcher
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	scope      Scope
	generation uint64
	loaded     bool
	current    frame
	history    []frame
	err        error
}

// NewNavigator creates a navigator over fetcher's table using its default dimensions.
func NewNavigator(fetcher *LevelFetcher, scope Scope, log zerolog.Logger) *Navigator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Navigator{
		table:   fetcher.Table(),
		fetcher: fetcher,
		log:     log.With().Str("component", "navigator").Str("table", fetcher.Table().ID).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		scope:   scope,
	}
}

// Load fetches the top level and clears the history.
func (n *Navigator) Load(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return apperrors.ErrControllerClosed
	}
	n.generation++
	gen, scope := n.generation, n.scope
	n.mu.Unlock()

	fctx, cancel := n.fetchContext(ctx)
	defer cancel()
	res := n.fetcher.FetchLevel(fctx, nil, n.table.Defaults, scope)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return apperrors.ErrControllerClosed
	}
	if n.generation != gen {
		return apperrors.ErrStaleResponse
	}
	n.loaded = true
	n.history = nil
	n.current = frame{rows: res.Rows}
	n.err = res.Err
	if res.Err != nil {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrFailedToRetrieve, n.table.ID, res.Err)
	}
	return nil
}

// Loaded reports whether the top level has been fetched.
func (n *Navigator) Loaded() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loaded
}

// DrillIn replaces the current level with the children of the slice keyed key. An empty result is
// shown as an empty level; a failure leaves the view unchanged.
func (n *Navigator) DrillIn(ctx context.Context, key string) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return apperrors.ErrControllerClosed
	}
	var target *model.DisplayRow
	for i := range n.current.rows {
		if n.current.rows[i].Key == key {
			target = &n.current.rows[i]
			break
		}
	}
	if target == nil {
		n.mu.Unlock()
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidPath, key)
	}
	path := target.Path()
	if !n.table.HasLevel(n.table.Defaults, path.Depth()) {
		n.mu.Unlock()
		return fmt.Errorf("%w: %s", apperrors.ErrNoDeeperLevel, target.Name)
	}
	gen, scope := n.generation, n.scope
	n.mu.Unlock()

	fctx, cancel := n.fetchContext(ctx)
	defer cancel()
	res := n.fetcher.FetchLevel(fctx, path, n.table.Defaults, scope)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return apperrors.ErrControllerClosed
	}
	if n.generation != gen {
		return apperrors.ErrStaleResponse
	}
	if !res.OK() {
		return res.Err
	}
	n.generation++
	n.history = append(n.history, n.current)
	n.current = frame{path: path, rows: res.Rows}
	return nil
}

// Back restores the previous level.
func (n *Navigator) Back() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return apperrors.ErrControllerClosed
	}
	if len(n.history) == 0 {
		return apperrors.ErrNothingToGoBack
	}
	n.generation++
	n.current = n.history[len(n.history)-1]
	n.history = n.history[:len(n.history)-1]
	return nil
}

// OnCurrencyChanged switches the currency and reloads the top level.
func (n *Navigator) OnCurrencyChanged(ctx context.Context, cur model.Currency) error {
	n.mu.Lock()
	n.scope.Currency = cur
	n.mu.Unlock()
	return n.Load(ctx)
}

// SetCookie replaces the credential forwarded to the backend.
func (n *Navigator) SetCookie(cookie string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scope.Cookie = cookie
}

// Close cancels in-flight fetches.
func (n *Navigator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	n.cancel()
}

// Slice is one rendered segment of the breakdown chart.
type Slice struct {
	Key        string  `json:"key"`
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Display    string  `json:"display"`
	Return     string  `json:"return"`
	Expandable bool    `json:"expandable"`
}

// NavigatorView is a formatted snapshot of the navigator.
type NavigatorView struct {
	Table     string         `json:"table"`
	Title     string         `json:"title"`
	Path      []string       `json:"path"`
	Depth     int            `json:"depth"`
	CanGoBack bool           `json:"can_go_back"`
	Currency  model.Currency `json:"currency"`
	Mode      TotalMode      `json:"mode"`
	Total     string         `json:"total"`
	Slices    []Slice        `json:"slices"`
	Error     string         `json:"error,omitempty"`
	Retry     bool           `json:"retry,omitempty"`
}

// View renders the current level; Total is computed for mode.
func (n *Navigator) View(mode TotalMode) NavigatorView {
	n.mu.Lock()
	defer n.mu.Unlock()

	cur := n.scope.Currency
	v := NavigatorView{
		Table:     n.table.ID,
		Title:     n.table.Title,
		Path:      append([]string{}, n.current.path...),
		Depth:     n.current.path.Depth(),
		CanGoBack: len(n.history) > 0,
		Currency:  cur,
		Mode:      mode,
		Total:     totalOf(n.current.rows, mode, cur),
		Slices:    make([]Slice, 0, len(n.current.rows)),
	}
	if n.err != nil && len(n.history) == 0 {
		v.Error = "failed to load breakdown"
		v.Retry = true
	}
	for _, r := range n.current.rows {
		amount, _ := format.ToFloat(amountOf(r).Value)
		v.Slices = append(v.Slices, Slice{
			Key:        r.Key,
			Name:       r.Name,
			Amount:     amount,
			Display:    format.Cell(amountOf(r), cur),
			Return:     format.Cell(returnOf(r), cur),
			Expandable: n.table.HasLevel(n.table.Defaults, r.Path().Depth()),
		})
	}
	return v
}

// Total sums the current level for mode.
func (n *Navigator) Total(mode TotalMode) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return totalOf(n.current.rows, mode, n.scope.Currency)
}

func totalOf(rows []model.DisplayRow, mode TotalMode, cur model.Currency) string {
	sum := decimal.Zero
	for _, r := range rows {
		m := amountOf(r)
		if mode == TotalPercentage {
			m = returnOf(r)
		}
		if f, ok := format.ToFloat(m.Value); ok {
			sum = sum.Add(decimal.NewFromFloat(f))
		}
	}
	if mode == TotalPercentage {
		return sum.StringFixed(2) + "%"
	}
	return format.Value(sum.InexactFloat64(), true, cur)
}

// amountOf is the first currency column of the row.
func amountOf(r model.DisplayRow) model.Metric {
	for _, m := range r.Metrics {
		if m.Kind == model.KindCurrency {
			return m
		}
	}
	return model.Metric{Kind: model.KindCurrency}
}

// returnOf is the first numeric non-currency column of the row.
func returnOf(r model.DisplayRow) model.Metric {
	for _, m := range r.Metrics {
		if m.Kind == model.KindNumber || m.Kind == model.KindPercent {
			return m
		}
	}
	return model.Metric{Kind: model.KindNumber}
}

func (n *Navigator) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	fctx, cancel := context.WithCancel(n.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return fctx, func() {
		stop()
		cancel()
	}
}
