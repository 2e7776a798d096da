package model

import "strings"

// RawRow is one object of an upstream response. Field names vary per endpoint.
type RawRow map[string]any

// DrillPath is the ordered list of ancestor keys that identifies a position in a table's
// hierarchy. Its length is the depth of the rows it produces.
type DrillPath []string

// pathSeparator cannot appear in keys typed by users or returned by the backend.
const pathSeparator = "\x1f"

// Key serializes the path for use as a map key. The empty path has the empty key.
func (p DrillPath) Key() string {
	return strings.Join(p, pathSeparator)
}

// Depth is the level of the rows produced by fetching this path.
func (p DrillPath) Depth() int { return len(p) }

// Child returns a new path extended by key; p is not modified.
func (p DrillPath) Child(key string) DrillPath {
	out := make(DrillPath, len(p)+1)
	copy(out, p)
	out[len(p)] = key
	return out
}

// Equal reports whether both paths name the same position.
func (p DrillPath) Equal(o DrillPath) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// ColumnKind decides how a metric value is rendered.
type ColumnKind string

const (
	KindCurrency ColumnKind = "currency"
	KindNumber   ColumnKind = "number"
	KindPercent  ColumnKind = "percent"
	KindText     ColumnKind = "text"
)

// Metric is one labelled value of a DisplayRow. Value is the raw upstream value; formatting
// happens at render time so a currency switch never needs re-projection.
type Metric struct {
	Label string     `json:"label"`
	Value any        `json:"value"`
	Kind  ColumnKind `json:"kind"`
}

// DisplayRow is the canonical projected row.
type DisplayRow struct {
	// Key is the selector appended to the path when this row is expanded. It equals Name unless
	// the level names rows from a different field (e.g. "Client 7" keyed by "7").
	Key     string    `json:"key"`
	Name    string    `json:"name"`
	Metrics []Metric  `json:"metrics"`
	Level   int       `json:"level"`
	Parent  DrillPath `json:"parent"`
}

// Path returns the drill path that addresses this row's children.
func (r DisplayRow) Path() DrillPath { return r.Parent.Child(r.Key) }

// Metric looks a metric up by label.
func (r DisplayRow) Metric(label string) (Metric, bool) {
	for _, m := range r.Metrics {
		if m.Label == label {
			return m, true
		}
	}
	return Metric{}, false
}

// RowState is the per-path expansion state.
type RowState string

const (
	RowCollapsed RowState = "collapsed"
	RowLoading   RowState = "loading"
	RowExpanded  RowState = "expanded"
)
