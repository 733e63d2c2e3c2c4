// Package calendar holds the day-granular date math shared by scoring, the
// ledger and the reminder job. Dates travel as ISO "YYYY-MM-DD" strings so
// they compare lexically; nothing here is time-of-day aware.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the on-disk and on-wire format for calendar days.
const Layout = "2006-01-02"

// Clock supplies the current instant. Production code uses System; tests
// pin a date with Fixed.
type Clock interface {
	Now() time.Time
}

// System reads the host clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// Today returns the calendar day of clock's current instant in loc.
func Today(clock Clock, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return clock.Now().In(loc).Format(Layout)
}

// Parse turns an ISO day into midnight UTC of that day.
func Parse(date string) (time.Time, error) {
	t, err := time.Parse(Layout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// Valid reports whether date is a well-formed ISO day.
func Valid(date string) bool {
	_, err := time.Parse(Layout, date)
	return err == nil
}

// AddDays shifts date by n days. Invalid input yields "".
func AddDays(date string, n int) string {
	t, err := Parse(date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, n).Format(Layout)
}

// WeekStart returns the Monday on or before date. A Sunday maps to the
// Monday six days earlier.
func WeekStart(date string) string {
	t, err := Parse(date)
	if err != nil {
		return ""
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(Layout)
}

// PreviousWeek returns the Monday and Sunday of the week before the one
// containing today.
func PreviousWeek(today string) (start, end string) {
	current := WeekStart(today)
	if current == "" {
		return "", ""
	}
	return AddDays(current, -7), AddDays(current, -1)
}

// Days lists every day from `from` through `to`, inclusive. It returns nil
// when the range is empty or malformed.
func Days(from, to string) []string {
	start, err := Parse(from)
	if err != nil {
		return nil
	}
	end, err := Parse(to)
	if err != nil || end.Before(start) {
		return nil
	}

	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(Layout))
	}
	return days
}

// Earliest returns the lexically (and therefore chronologically) smaller day.
func Earliest(a, b string) string {
	if a < b {
		return a
	}
	return b
}
