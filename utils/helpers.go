package utils

import (
	"math"
	"strings"
	"time"
)

// timestampLayouts are the ISO-8601 shapes accepted for start_date/end_date. Layouts
// without a zone are read as UTC; an explicit offset is kept.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 date or datetime. The caller's offset is preserved so
// day boundaries and date labels follow the requested calendar days.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, NewValidationError("Invalid date format: %q. Use ISO-8601 (e.g. 2006-01-02T15:04:05Z)", value)
}

// PercentChange compares current against previous, rounded to one decimal.
// A previous value of zero yields 100 when anything happened this period and 0 otherwise.
func PercentChange(current, previous int64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100.0
		}
		return 0.0
	}
	change := (float64(current) - float64(previous)) / float64(previous) * 100
	return math.Round(change*10) / 10
}

// WholeDays is the number of complete days in d, floored like a calendar difference.
func WholeDays(d time.Duration) int {
	return int(math.Floor(d.Hours() / 24))
}
