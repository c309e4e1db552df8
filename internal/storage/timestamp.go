package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// tsLayout is the only layout written to the database. Values are always
// normalized to UTC and truncated to whole seconds, so every stored string
// has the same width and offset and sorts chronologically.
const tsLayout = "2006-01-02T15:04:05-07:00"

// FormatTimestamp renders t in the canonical storage form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(tsLayout)
}

// ParseTimestamp parses a stored timestamp. Legacy values with fractional
// seconds or a non-UTC offset are accepted and normalized.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC().Truncate(time.Second), nil
}

func tsArg(t time.Time) string { return FormatTimestamp(t) }

func tsArgPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return FormatTimestamp(*t)
}

func scanTS(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return ParseTimestamp(s)
}

func scanTSPtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
