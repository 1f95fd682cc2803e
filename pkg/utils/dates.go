package utils

import "time"

// Constants
const (
	DATE_LAYOUT = "2006-01-02"
)

// TruncateDay drops the clock part of t, keeping its calendar date in UTC
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NightsBetween counts calendar nights between start and end.
// Returns 0 when end is on or before start.
func NightsBetween(start, end time.Time) int {
	s, e := TruncateDay(start), TruncateDay(end)
	if !e.After(s) {
		return 0
	}
	return int(e.Sub(s).Hours() / 24)
}

// RangesOverlap is the closed interval test aStart ≤ bEnd && aEnd ≥ bStart
func RangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}

// ParseDate parses a DATE_LAYOUT date or an RFC3339 timestamp
func ParseDate(value string) (time.Time, error) {
	if t, err := time.Parse(DATE_LAYOUT, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
