package drilldown

import (
	"github.com/ndewijer/portfolio-dashboard/internal/format"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

// ViewRow is one rendered table row. Children of expanded rows follow their parent directly.
type ViewRow struct {
	Key        string         `json:"key"`
	Path       []string       `json:"path"`
	Name       string         `json:"name"`
	Level      int            `json:"level"`
	State      model.RowState `json:"state"`
	Expandable bool           `json:"expandable"`
	Cells      []string       `json:"cells"`
}

// View is a formatted snapshot of a table.
type View struct {
	Table         string         `json:"table"`
	Title         string         `json:"title"`
	Allocation    string         `json:"allocation"`
	Distribution  string         `json:"distribution"`
	Allocations   []string       `json:"allocations"`
	Distributions []string       `json:"distributions"`
	Currency      model.Currency `json:"currency"`
	Headers       []string       `json:"headers"`
	Rows          []ViewRow      `json:"rows"`
	Summary       *ViewRow       `json:"summary,omitempty"`
	Loaded        bool           `json:"loaded"`
	Error         string         `json:"error,omitempty"`
	Retry         bool           `json:"retry,omitempty"`
}

// View renders the current state with every cell formatted in the controller's currency.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.scope.Currency
	v := View{
		Table:         c.table.ID,
		Title:         c.table.Title,
		Allocation:    c.dims.Allocation,
		Distribution:  c.dims.Distribution,
		Allocations:   c.table.Allocations,
		Distributions: c.table.Distributions,
		Currency:      cur,
		Headers:       append([]string(nil), c.headers...),
		Rows:          []ViewRow{},
		Loaded:        c.rootLoaded,
	}
	if c.rootErr != nil {
		v.Error = "failed to load table data"
		v.Retry = true
	}
	if c.summary != nil {
		s := c.renderRow(*c.summary, cur)
		s.Expandable = false
		s.State = model.RowCollapsed
		v.Summary = &s
	}
	c.appendRows(&v.Rows, c.root, cur)
	return v
}

func (c *Controller) appendRows(out *[]ViewRow, rows []model.DisplayRow, cur model.Currency) {
	for _, r := range rows {
		*out = append(*out, c.renderRow(r, cur))
		p := r.Path()
		if !c.state.IsExpanded(p) {
			continue
		}
		if children, ok := c.state.Cached(p); ok {
			c.appendRows(out, children, cur)
		}
	}
}

func (c *Controller) renderRow(r model.DisplayRow, cur model.Currency) ViewRow {
	cells := make([]string, 0, len(r.Metrics))
	for _, m := range r.Metrics {
		cells = append(cells, format.Cell(m, cur))
	}
	p := r.Path()
	return ViewRow{
		Key:        r.Key,
		Path:       p,
		Name:       r.Name,
		Level:      r.Level,
		State:      c.stateLocked(p),
		Expandable: c.table.HasLevel(c.dims, p.Depth()),
		Cells:      cells,
	}
}
