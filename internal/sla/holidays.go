package sla

import (
	"fmt"
	"sort"
	"time"
)

// Date is a calendar date without time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// HolidaySet holds non-working calendar dates. A nil set is empty.
type HolidaySet map[Date]struct{}

// NewHolidaySet builds a set from dates.
func NewHolidaySet(dates ...Date) HolidaySet {
	s := make(HolidaySet, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

// Contains compares by the calendar date of t in t's location; time of day is ignored.
func (s HolidaySet) Contains(t time.Time) bool {
	_, ok := s[DateOf(t)]
	return ok
}

// Merge returns a new set holding the dates of s and every other set.
func (s HolidaySet) Merge(others ...HolidaySet) HolidaySet {
	out := make(HolidaySet, len(s))
	for d := range s {
		out[d] = struct{}{}
	}
	for _, o := range others {
		for d := range o {
			out[d] = struct{}{}
		}
	}
	return out
}

// Year returns the subset of dates falling in year.
func (s HolidaySet) Year(year int) HolidaySet {
	out := HolidaySet{}
	for d := range s {
		if d.Year == year {
			out[d] = struct{}{}
		}
	}
	return out
}

// Sorted returns the dates in ascending order.
func (s HolidaySet) Sorted() []Date {
	out := make([]Date, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].before(out[j]) })
	return out
}

// HolidayProvider supplies the non-working dates of a year for a fixed region.
// Implementations must be deterministic and side-effect free.
type HolidayProvider interface {
	HolidaysFor(year int) HolidaySet
}

// HolidayFunc adapts a function to HolidayProvider.
type HolidayFunc func(year int) HolidaySet

func (f HolidayFunc) HolidaysFor(year int) HolidaySet { return f(year) }
