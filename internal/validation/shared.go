package validation

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Error collects per-field validation failures. Fields is returned to clients as error details.
type Error struct {
	Fields map[string]string
}

// Error lists the failures ordered by field name.
func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(msgs, "; ")
}
