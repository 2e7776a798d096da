package repository

import (
	"fmt"
	"time"
)

// timeLayout sorts lexically in chronological order, so stored timestamps compare correctly
// in SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses a stored timestamp, a "2006-01-02" date, or an RFC3339 string.
func ParseTime(str string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, str); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse date: %q", str)
}
