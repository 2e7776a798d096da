// Package schema holds the level-schema registry: one record per (allocation, distribution, depth)
// combination naming the backend endpoint and the field-candidate chains used to project its rows.
//
// The registry is loaded from an embedded YAML document and validated once at startup so that a
// drill path of a given length always resolves to at most one endpoint.
package schema

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

// Wildcard matches any allocation or distribution value in a level entry.
const Wildcard = "*"

//go:embed levels.yaml
var defaultDocument []byte

// Column is one metric column and its ordered source-field candidates.
type Column struct {
	Label  string           `yaml:"label"`
	Fields []string         `yaml:"fields"`
	Kind   model.ColumnKind `yaml:"kind"`
}

// Filter keeps only rows whose Field equals Equals, compared case-insensitively.
type Filter struct {
	Field  string `yaml:"field"`
	Equals string `yaml:"equals"`
}

// Matches reports whether the row passes the filter.
func (f *Filter) Matches(row model.RawRow) bool {
	if f == nil {
		return true
	}
	v, ok := row[f.Field].(string)
	return ok && strings.EqualFold(strings.TrimSpace(v), f.Equals)
}

// Level describes how to fetch and name the rows at one depth of a table.
//
// A level with GroupBy set fetches two depths at once: its rows are grouped by that field, each
// distinct value becomes a row at Depth, and the members of a group are that row's children.
type Level struct {
	Allocation     string   `yaml:"allocation"`
	Distribution   string   `yaml:"distribution"`
	Depth          int      `yaml:"depth"`
	Endpoint       string   `yaml:"endpoint"`
	NameFields     []string `yaml:"name_fields"`
	KeyField       string   `yaml:"key_field"`
	NameFormat     string   `yaml:"name_format"`
	Envelope       string   `yaml:"envelope"`
	CurrencyQuery  bool     `yaml:"currency_query"`
	DimensionQuery bool     `yaml:"dimension_query"`
	GroupBy        string   `yaml:"group_by"`
	Filter         *Filter  `yaml:"filter"`
}

// Summary is a pseudo-row fetched independently of the dimension pair.
type Summary struct {
	Name          string `yaml:"name"`
	Endpoint      string `yaml:"endpoint"`
	Envelope      string `yaml:"envelope"`
	CurrencyQuery bool   `yaml:"currency_query"`
}

// Dimensions is an (allocation, distribution) pair.
type Dimensions struct {
	Allocation   string `yaml:"allocation" json:"allocation"`
	Distribution string `yaml:"distribution" json:"distribution"`
}

// Table is the full schema of one drill-down table.
type Table struct {
	ID            string     `yaml:"id"`
	Title         string     `yaml:"title"`
	ScopeEndpoint string     `yaml:"scope_endpoint"`
	ScopeField    string     `yaml:"scope_field"`
	Allocations   []string   `yaml:"allocations"`
	Distributions []string   `yaml:"distributions"`
	Defaults      Dimensions `yaml:"defaults"`
	Columns       []Column   `yaml:"columns"`
	NameFallback  []string   `yaml:"name_fallback"`
	Summary       *Summary   `yaml:"summary"`
	Levels        []Level    `yaml:"levels"`
}

// Panel is a KPI panel dataset.
type Panel struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Endpoint    string `yaml:"endpoint"`
	PanEndpoint string `yaml:"pan_endpoint"`
	Envelope    string `yaml:"envelope"`
}

// PanList describes where a client's PANs come from.
type PanList struct {
	Endpoint   string   `yaml:"endpoint"`
	NameFields []string `yaml:"name_fields"`
}

type document struct {
	Tables []*Table `yaml:"tables"`
	Panels []*Panel `yaml:"panels"`
	Pans   PanList  `yaml:"pans"`
}

// Registry resolves tables, levels, and panels by identifier.
type Registry struct {
	tables map[string]*Table
	order  []string
	panels map[string]*Panel
	pans   PanList
}

// Default loads the embedded registry.
func Default() (*Registry, error) {
	return Load(defaultDocument)
}

// Load parses and validates a registry document.
func Load(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse level schemas: %w", err)
	}

	reg := &Registry{
		tables: make(map[string]*Table, len(doc.Tables)),
		panels: make(map[string]*Panel, len(doc.Panels)),
		pans:   doc.Pans,
	}
	for _, t := range doc.Tables {
		if err := t.validate(); err != nil {
			return nil, err
		}
		if _, dup := reg.tables[t.ID]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.ID)
		}
		reg.tables[t.ID] = t
		reg.order = append(reg.order, t.ID)
	}
	for _, p := range doc.Panels {
		if p.ID == "" || p.Endpoint == "" {
			return nil, fmt.Errorf("panel %q: %w: id and endpoint", p.ID, apperrors.ErrMissingRequiredField)
		}
		reg.panels[p.ID] = p
	}
	return reg, nil
}

// Table returns the table registered under id.
func (r *Registry) Table(id string) (*Table, error) {
	t, ok := r.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTableNotFound, id)
	}
	return t, nil
}

// Tables returns every table in document order.
func (r *Registry) Tables() []*Table {
	out := make([]*Table, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tables[id])
	}
	return out
}

// Panel returns the panel registered under id.
func (r *Registry) Panel(id string) (*Panel, error) {
	p, ok := r.panels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrPanelNotFound, id)
	}
	return p, nil
}

// Pans returns the PAN list source.
func (r *Registry) Pans() PanList { return r.pans }

// ValidateDimensions checks that both values are offered by the table.
func (t *Table) ValidateDimensions(d Dimensions) error {
	if !slices.Contains(t.Allocations, d.Allocation) {
		return fmt.Errorf("%w: allocation %q for table %s", apperrors.ErrInvalidDimension, d.Allocation, t.ID)
	}
	if !slices.Contains(t.Distributions, d.Distribution) {
		return fmt.Errorf("%w: distribution %q for table %s", apperrors.ErrInvalidDimension, d.Distribution, t.ID)
	}
	return nil
}

// Level resolves the schema for rows at depth under the given dimensions. An exact entry wins over
// a wildcard one. ErrNoDeeperLevel is returned when neither exists.
func (t *Table) Level(d Dimensions, depth int) (*Level, error) {
	var wildcard *Level
	for i := range t.Levels {
		l := &t.Levels[i]
		if l.Depth != depth || !matches(l.Allocation, d.Allocation) || !matches(l.Distribution, d.Distribution) {
			continue
		}
		if l.Allocation != Wildcard && l.Distribution != Wildcard {
			return l, nil
		}
		if wildcard == nil || specificity(l) > specificity(wildcard) {
			wildcard = l
		}
	}
	if wildcard != nil {
		return wildcard, nil
	}
	return nil, fmt.Errorf("%w: table %s, %s/%s at depth %d",
		apperrors.ErrNoDeeperLevel, t.ID, d.Allocation, d.Distribution, depth)
}

// HasLevel reports whether rows at depth exist under the given dimensions, either fetched by their
// own level or as the members of a grouped level one above.
func (t *Table) HasLevel(d Dimensions, depth int) bool {
	if _, err := t.Level(d, depth); err == nil {
		return true
	}
	if depth == 0 {
		return false
	}
	parent, err := t.Level(d, depth-1)
	return err == nil && parent.GroupBy != ""
}

// Labels returns the header row: "Name" followed by each column label.
func (t *Table) Labels() []string {
	out := make([]string, 0, len(t.Columns)+1)
	out = append(out, "Name")
	for _, c := range t.Columns {
		out = append(out, c.Label)
	}
	return out
}

func (t *Table) validate() error {
	if t.ID == "" {
		return fmt.Errorf("table: %w: id", apperrors.ErrMissingRequiredField)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: %w: columns", t.ID, apperrors.ErrMissingRequiredField)
	}
	for _, c := range t.Columns {
		switch c.Kind {
		case model.KindCurrency, model.KindNumber, model.KindPercent, model.KindText:
		default:
			return fmt.Errorf("table %s: column %q has unknown kind %q", t.ID, c.Label, c.Kind)
		}
		if len(c.Fields) == 0 {
			return fmt.Errorf("table %s: column %q: %w: fields", t.ID, c.Label, apperrors.ErrMissingRequiredField)
		}
	}
	if err := t.ValidateDimensions(t.Defaults); err != nil {
		return fmt.Errorf("table %s defaults: %w", t.ID, err)
	}

	seen := make(map[string]bool, len(t.Levels))
	rootFound := false
	maxDepth := 0
	for _, l := range t.Levels {
		if l.Endpoint == "" {
			return fmt.Errorf("table %s depth %d: %w: endpoint", t.ID, l.Depth, apperrors.ErrMissingRequiredField)
		}
		if l.Depth < 0 {
			return fmt.Errorf("table %s: negative depth %d", t.ID, l.Depth)
		}
		if l.GroupBy != "" && len(l.NameFields) == 0 {
			return fmt.Errorf("table %s depth %d: %w: name_fields of grouped members",
				t.ID, l.Depth, apperrors.ErrMissingRequiredField)
		}
		if l.Allocation != Wildcard && !slices.Contains(t.Allocations, l.Allocation) {
			return fmt.Errorf("table %s: level uses unknown allocation %q", t.ID, l.Allocation)
		}
		if l.Distribution != Wildcard && !slices.Contains(t.Distributions, l.Distribution) {
			return fmt.Errorf("table %s: level uses unknown distribution %q", t.ID, l.Distribution)
		}
		key := fmt.Sprintf("%s|%s|%d", l.Allocation, l.Distribution, l.Depth)
		if seen[key] {
			return fmt.Errorf("table %s: duplicate level %s", t.ID, key)
		}
		seen[key] = true
		if l.Depth == 0 {
			rootFound = true
		}
		maxDepth = max(maxDepth, l.Depth)
	}
	if !rootFound {
		return fmt.Errorf("table %s: no level at depth 0", t.ID)
	}
	for _, a := range t.Allocations {
		for _, d := range t.Distributions {
			dims := Dimensions{Allocation: a, Distribution: d}
			if !t.HasLevel(dims, 0) {
				return fmt.Errorf("table %s: no root level for %s/%s", t.ID, a, d)
			}
			for depth := 0; depth < maxDepth; depth++ {
				l, err := t.Level(dims, depth)
				if err != nil || l.GroupBy == "" {
					continue
				}
				if _, err := t.Level(dims, depth+1); err == nil {
					return fmt.Errorf("table %s: grouped level %s/%s at depth %d has a child level", t.ID, a, d, depth)
				}
			}
		}
	}
	return nil
}

func matches(pattern, value string) bool {
	return pattern == Wildcard || pattern == value
}

// specificity prefers an entry that pins one dimension over one that pins none.
func specificity(l *Level) int {
	n := 0
	if l.Allocation != Wildcard {
		n++
	}
	if l.Distribution != Wildcard {
		n++
	}
	return n
}
