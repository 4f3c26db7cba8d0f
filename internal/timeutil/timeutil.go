// Package timeutil parses the time arguments operators pass to commands and
// renders the API's epoch-millisecond timestamps.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var units = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
}

// ParseMillis converts s to epoch milliseconds. It accepts epoch
// milliseconds, epoch seconds (10 digits or fewer), RFC3339 and date
// layouts, and relative phrases such as "3 days", "1 month ago" or
// "12 hours". Relative phrases are resolved against now. An empty string
// yields 0.
func ParseMillis(s string, now time.Time) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if len(strings.TrimLeft(s, "-")) <= 10 {
			return n * 1000, nil
		}
		return n, nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	t, err := parseRelative(s, now)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// Ago resolves a relative phrase such as "3 days" to a point before now.
func Ago(phrase string, now time.Time) (time.Time, error) {
	return parseRelative(strings.TrimSpace(phrase), now)
}

func parseRelative(s string, now time.Time) (time.Time, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 3 && fields[2] == "ago" {
		fields = fields[:2]
	}
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	unit := strings.TrimSuffix(fields[1], "s")
	switch unit {
	case "month":
		return now.AddDate(0, -n, 0), nil
	case "year":
		return now.AddDate(-n, 0, 0), nil
	}
	d, ok := units[unit]
	if !ok {
		return time.Time{}, fmt.Errorf("invalid time unit %q", fields[1])
	}
	return now.Add(-time.Duration(n) * d), nil
}

// FormatMillis renders epoch milliseconds as RFC3339 in UTC.
func FormatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
