package drilldown

import (
	"sort"

	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

// ExpansionState tracks which paths are expanded and caches the children fetched for each path.
// Collapsing keeps the cache so re-expansion needs no fetch. It is not safe for concurrent use;
// the Controller guards it.
type ExpansionState struct {
	expanded map[string]model.DrillPath
	cache    map[string][]model.DisplayRow
}

// NewExpansionState returns an empty state.
func NewExpansionState() *ExpansionState {
	return &ExpansionState{
		expanded: make(map[string]model.DrillPath),
		cache:    make(map[string][]model.DisplayRow),
	}
}

func (s *ExpansionState) IsExpanded(p model.DrillPath) bool {
	_, ok := s.expanded[p.Key()]
	return ok
}

func (s *ExpansionState) SetExpanded(p model.DrillPath) {
	s.expanded[p.Key()] = append(model.DrillPath(nil), p...)
}

func (s *ExpansionState) SetCollapsed(p model.DrillPath) {
	delete(s.expanded, p.Key())
}

// Cached returns the children stored for p. An empty slice is a valid entry.
func (s *ExpansionState) Cached(p model.DrillPath) ([]model.DisplayRow, bool) {
	rows, ok := s.cache[p.Key()]
	return rows, ok
}

// Store records the children of p.
func (s *ExpansionState) Store(p model.DrillPath, rows []model.DisplayRow) {
	if rows == nil {
		rows = []model.DisplayRow{}
	}
	s.cache[p.Key()] = rows
}

// Reset clears both the expanded set and the cache.
func (s *ExpansionState) Reset() {
	clear(s.expanded)
	clear(s.cache)
}

// Expanded returns the expanded paths, shallowest first.
func (s *ExpansionState) Expanded() []model.DrillPath {
	out := make([]model.DrillPath, 0, len(s.expanded))
	for _, p := range s.expanded {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth() != out[j].Depth() {
			return out[i].Depth() < out[j].Depth()
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// CacheLen is the number of cached paths.
func (s *ExpansionState) CacheLen() int { return len(s.cache) }
