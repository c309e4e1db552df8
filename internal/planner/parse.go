package planner

import (
	"strings"
	"time"
)

// LocalLayout is the user-facing date-time layout for events and reminders.
const LocalLayout = "2006-01-02 15:04"

// ParseLocal parses "YYYY-MM-DD HH:MM" as wall time in loc.
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(LocalLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, invalid("time %q: use YYYY-MM-DD HH:MM", s)
	}
	return t, nil
}

// Memo times without an offset are read as UTC.
var memoLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	LocalLayout,
	"2006-01-02 15:04:05",
}

// ParseMemoTime accepts ISO-8601 with or without offset, YYYY-MM-DD, or
// YYYY-MM-DD HH:MM. Empty input yields nil.
func ParseMemoTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC().Truncate(time.Second)
		return &t, nil
	}
	for _, layout := range memoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, invalid("time %q: use ISO-8601, YYYY-MM-DD or YYYY-MM-DD HH:MM", s)
}

// pageSize maps n <= 0 to def and caps it at hi.
func pageSize(n, def, hi int) int {
	if n <= 0 {
		return def
	}
	return min(n, hi)
}
