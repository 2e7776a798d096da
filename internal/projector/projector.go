// Package projector normalizes raw backend rows into DisplayRows using a level schema.
//
// Projection never fails: a missing name becomes the placeholder and a missing metric keeps a nil
// value that the formatter renders as the placeholder.
package projector

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ndewijer/portfolio-dashboard/internal/format"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/schema"
)

// NameLabel is the header of the first column.
const NameLabel = "Name"

// Project maps one raw row produced at lvl into a DisplayRow whose children are addressed by
// parent + key.
func Project(raw model.RawRow, tbl *schema.Table, lvl *schema.Level, parent model.DrillPath) model.DisplayRow {
	var nameFields []string
	var keyField, nameFormat string
	if lvl != nil {
		nameFields = lvl.NameFields
		keyField = lvl.KeyField
		nameFormat = lvl.NameFormat
	}

	name, found := resolveName(raw, nameFields, tbl.NameFallback)
	key := name
	if keyField != "" {
		if k, ok := stringField(raw, keyField); ok {
			key = k
		}
	}
	if found && nameFormat != "" {
		name = fmt.Sprintf(nameFormat, name)
	}

	return model.DisplayRow{
		Key:     key,
		Name:    name,
		Metrics: Metrics(raw, tbl.Columns),
		Level:   parent.Depth(),
		Parent:  parent,
	}
}

// ProjectAll projects a batch, dropping rows rejected by the level filter.
func ProjectAll(raws []model.RawRow, tbl *schema.Table, lvl *schema.Level, parent model.DrillPath) []model.DisplayRow {
	out := make([]model.DisplayRow, 0, len(raws))
	for _, raw := range raws {
		if lvl != nil && !lvl.Filter.Matches(raw) {
			continue
		}
		out = append(out, Project(raw, tbl, lvl, parent))
	}
	return out
}

// ProjectGroups folds the rows of a grouped level into one row per distinct lvl.GroupBy value, in
// first-seen order, and returns the projected members of each group keyed by the group row's key.
// Group rows carry every column with no value.
func ProjectGroups(raws []model.RawRow, tbl *schema.Table, lvl *schema.Level, parent model.DrillPath) ([]model.DisplayRow, map[string][]model.DisplayRow) {
	groups := make([]model.DisplayRow, 0)
	members := make(map[string][]model.DisplayRow)
	for _, raw := range raws {
		if !lvl.Filter.Matches(raw) {
			continue
		}
		key, ok := stringField(raw, lvl.GroupBy)
		if !ok {
			key = format.Placeholder
		}
		if _, seen := members[key]; !seen {
			groups = append(groups, model.DisplayRow{
				Key:     key,
				Name:    key,
				Metrics: Metrics(nil, tbl.Columns),
				Level:   parent.Depth(),
				Parent:  parent,
			})
			members[key] = []model.DisplayRow{}
		}
		members[key] = append(members[key], Project(raw, tbl, lvl, parent.Child(key)))
	}
	return groups, members
}

// ProjectSummary projects the summary pseudo-row; its name is fixed.
func ProjectSummary(raw model.RawRow, tbl *schema.Table) model.DisplayRow {
	name := "Summary"
	if tbl.Summary != nil && tbl.Summary.Name != "" {
		name = tbl.Summary.Name
	}
	return model.DisplayRow{
		Key:     name,
		Name:    name,
		Metrics: Metrics(raw, tbl.Columns),
	}
}

// Metrics resolves every column against its candidate chain. The first present, non-null field
// wins.
func Metrics(raw model.RawRow, cols []schema.Column) []model.Metric {
	out := make([]model.Metric, 0, len(cols))
	for _, c := range cols {
		m := model.Metric{Label: c.Label, Kind: c.Kind}
		for _, f := range c.Fields {
			if v, ok := raw[f]; ok && v != nil {
				m.Value = v
				break
			}
		}
		out = append(out, m)
	}
	return out
}

// Headers returns the column labels taken from the first row of a batch, or nil for an empty
// batch so callers can keep their previous headers.
func Headers(rows []model.DisplayRow) []string {
	if len(rows) == 0 {
		return nil
	}
	out := make([]string, 0, len(rows[0].Metrics)+1)
	out = append(out, NameLabel)
	for _, m := range rows[0].Metrics {
		out = append(out, m.Label)
	}
	return out
}

// resolveName tries the level's own name fields, then the table fallback chain. Empty strings
// count as absent.
func resolveName(raw model.RawRow, primary, fallback []string) (string, bool) {
	for _, chain := range [][]string{primary, fallback} {
		if s, ok := FirstString(raw, chain...); ok {
			return s, true
		}
	}
	return format.Placeholder, false
}

// FirstString returns the first of fields holding a non-blank value, rendered as a trimmed string.
func FirstString(raw model.RawRow, fields ...string) (string, bool) {
	for _, f := range fields {
		if s, ok := stringField(raw, f); ok {
			return s, true
		}
	}
	return "", false
}

func stringField(raw model.RawRow, field string) (string, bool) {
	v, ok := raw[field]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
