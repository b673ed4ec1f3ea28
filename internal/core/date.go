// Package core holds the ledger domain: value types, monetary amounts,
// calendar-day helpers and the payment status derivation rules.
//
// Everything in this package is pure. Operations that depend on the current
// date take it as an explicit parameter so results are reproducible in tests.
package core

import (
	"fmt"
	"strings"
	"time"
)

// DayFormat is the calendar-day layout used across the ledger. Every overdue
// and bucketing decision compares dates at day granularity, never with a
// time-of-day component.
const DayFormat = "2006-01-02"

// MonthFormat is the layout of period keys ("YYYY-MM").
const MonthFormat = "2006-01"

// ParseDay parses an ISO calendar date, stripping any time-of-day part the
// value may carry. The boolean is false when the value is empty or malformed;
// callers fall back to a conservative default in that case instead of failing.
func ParseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) > len(DayFormat) {
		s = s[:len(DayFormat)]
	}
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns to minus from in whole calendar days.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)).Hours() / 24)
}

// BeforeDay reports whether a falls on an earlier calendar day than b.
func BeforeDay(a, b time.Time) bool {
	return Day(a).Before(Day(b))
}

// MonthKey returns the stable "YYYY-MM" key of t's calendar month.
func MonthKey(t time.Time) string {
	return t.Format(MonthFormat)
}

// ParseMonth parses a "YYYY-MM" period key into the first day of that month.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(MonthFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("period %q: %w", s, ErrInvalidDate)
	}
	return t, nil
}

// MonthStart returns the first calendar day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last calendar day of t's month.
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}
