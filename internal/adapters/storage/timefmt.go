package storage

import "time"

// TimeLayout is fixed width and always UTC, so stored values sort and compare as strings.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t for a TEXT column. The zero time is stored as ''.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// ParseTime is the inverse of FormatTime. Unparseable values read as the zero time.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
