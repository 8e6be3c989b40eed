package utils

import (
	"fmt"
	"time"
)

// Constants
const (
	COMPACT_DATE_LAYOUT = "20060102"
	DATE_LAYOUT         = "2006-01-02"
	TIMESTAMP_LAYOUT    = "2006-01-02 15:04:05"
)

// ParseDate parses either YYYYMMDD or YYYY-MM-DD into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	layout := DATE_LAYOUT
	if len(s) == len(COMPACT_DATE_LAYOUT) {
		layout = COMPACT_DATE_LAYOUT
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatCompactDate renders t as YYYYMMDD, the format used by the fare API.
func FormatCompactDate(t time.Time) string {
	return t.Format(COMPACT_DATE_LAYOUT)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DATE_LAYOUT)
}

// TruncateToDate keeps the calendar date of t (in t's own location) as UTC midnight.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from -> to. Negative when to is earlier.
func DaysBetween(from, to time.Time) int {
	return int(TruncateToDate(to).Sub(TruncateToDate(from)).Hours() / 24)
}

// IsThursdayOrFriday reports whether t falls on a Thursday or Friday.
func IsThursdayOrFriday(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Thursday || wd == time.Friday
}

// WithinLookahead reports whether date is between today and today+windowDays inclusive.
func WithinLookahead(today, date time.Time, windowDays int) bool {
	diff := DaysBetween(today, date)
	return diff >= 0 && diff <= windowDays
}
