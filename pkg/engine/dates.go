package engine

import (
	"fmt"
	"time"
)

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// YearStart returns January 1 of year.
func YearStart(year int) time.Time {
	return Date(year, time.January, 1)
}

// YearEnd returns December 31 of year.
func YearEnd(year int) time.Time {
	return Date(year, time.December, 31)
}

// DaysInYear returns 365 or 366.
func DaysInYear(year int) int {
	return YearEnd(year).YearDay()
}

// DaysInclusive counts calendar days from start through end, both included.
// It returns 0 when end precedes start.
func DaysInclusive(start, end time.Time) int {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// InYear reports whether t falls within the calendar year.
func InYear(t time.Time, year int) bool {
	return t.Year() == year
}

// MinDate returns the earlier of a and b.
func MinDate(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

// MonthDay is a recurring calendar day such as the annual merit date.
// Its text form is "MM-DD".
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay parses "MM-DD".
func ParseMonthDay(s string) (MonthDay, error) {
	t, err := time.Parse("01-02", s)
	if err != nil {
		return MonthDay{}, fmt.Errorf("invalid month-day %q: expected MM-DD", s)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

// MustMonthDay is like ParseMonthDay but panics on error. It is intended for
// package-level defaults.
func MustMonthDay(s string) MonthDay {
	md, err := ParseMonthDay(s)
	if err != nil {
		panic(err)
	}
	return md
}

// In returns the date in year. February 29 falls back to February 28 in common years.
func (md MonthDay) In(year int) time.Time {
	if md.Month == time.February && md.Day == 29 && DaysInYear(year) == 365 {
		return Date(year, time.February, 28)
	}
	return Date(year, md.Month, md.Day)
}

// IsZero reports whether md is unset.
func (md MonthDay) IsZero() bool {
	return md.Month == 0 && md.Day == 0
}

// Before reports whether md falls earlier in the year than other.
func (md MonthDay) Before(other MonthDay) bool {
	if md.Month != other.Month {
		return md.Month < other.Month
	}
	return md.Day < other.Day
}

// String returns "MM-DD".
func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (md MonthDay) MarshalText() ([]byte, error) {
	return []byte(md.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (md *MonthDay) UnmarshalText(text []byte) error {
	parsed, err := ParseMonthDay(string(text))
	if err != nil {
		return err
	}
	*md = parsed
	return nil
}
