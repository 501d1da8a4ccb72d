// Package leavecalc computes how many days a leave request charges against the employee.
package leavecalc

import (
	"errors"
	"sort"
	"time"
)

// DateLayout is the calendar-date form used for excluded dates on the wire and in storage.
const DateLayout = "2006-01-02"

// ErrInvalidRange is returned when the start date falls after the end date.
var ErrInvalidRange = errors.New("start date is after end date")

// ComputeDays returns the payable days of the inclusive range [start, end] minus the excluded dates
// that fall inside it, together with those in-range excluded dates sorted and formatted as YYYY-MM-DD.
// Only the calendar date of each argument is considered.
func ComputeDays(start, end time.Time, excluded []time.Time) (int, []string, error) {
	start, end = Truncate(start), Truncate(end)
	if start.After(end) {
		return 0, nil, ErrInvalidRange
	}

	seen := make(map[time.Time]struct{}, len(excluded))
	inRange := make([]time.Time, 0, len(excluded))
	for _, d := range excluded {
		d = Truncate(d)
		if d.Before(start) || d.After(end) {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		inRange = append(inRange, d)
	}
	sort.Slice(inRange, func(i, j int) bool { return inRange[i].Before(inRange[j]) })

	total := DaysBetween(start, end) + 1 - len(inRange)
	if total < 0 {
		total = 0
	}

	normalized := make([]string, len(inRange))
	for i, d := range inRange {
		normalized[i] = d.Format(DateLayout)
	}
	return total, normalized, nil
}

// Truncate drops the clock part and returns the calendar date at UTC midnight.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	return int(Truncate(end).Sub(Truncate(start)).Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD string into a UTC calendar date.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}
