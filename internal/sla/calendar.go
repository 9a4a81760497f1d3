package sla

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"
)

var (
	ErrNonPositiveHours = errors.New("required work hours must be positive")
	ErrInvalidCalendar  = errors.New("invalid work calendar")
	ErrMalformedInstant = errors.New("malformed instant")
)

// DefaultTimezone is the zone the helpdesk operates in.
const DefaultTimezone = "America/Bogota"

// DisplayLayout renders due dates the way agents read them (day/month/year).
const DisplayLayout = "02/01/2006 15:04"

// WorkCalendar describes the daily work window and weekly rest days.
// It is immutable once built and safe for concurrent use.
type WorkCalendar struct {
	Location  *time.Location
	StartHour int
	EndHour   int
	Weekend   map[time.Weekday]struct{}
}

// DefaultWeekend returns the rest days used when no stored calendar says otherwise.
func DefaultWeekend() []time.Weekday {
	return []time.Weekday{time.Saturday, time.Sunday}
}

// DefaultWorkCalendar returns the 07:00-17:00 Monday to Friday calendar in Bogotá.
func DefaultWorkCalendar() WorkCalendar {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		// tzdata is embedded, this only happens with a corrupt build
		panic(err)
	}
	return WorkCalendar{
		Location:  loc,
		StartHour: 7,
		EndHour:   17,
		Weekend:   map[time.Weekday]struct{}{time.Saturday: {}, time.Sunday: {}},
	}
}

// NewWorkCalendar builds a calendar for the named zone and validates it. An empty
// weekend means every day of the week is a working day.
func NewWorkCalendar(tz string, startHour, endHour int, weekend ...time.Weekday) (WorkCalendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return WorkCalendar{}, fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}
	cal := WorkCalendar{
		Location:  loc,
		StartHour: startHour,
		EndHour:   endHour,
		Weekend:   make(map[time.Weekday]struct{}, len(weekend)),
	}
	for _, d := range weekend {
		cal.Weekend[d] = struct{}{}
	}
	return cal, cal.Validate()
}

// Validate checks the window invariants.
func (c WorkCalendar) Validate() error {
	if c.Location == nil {
		return fmt.Errorf("%w: missing location", ErrInvalidCalendar)
	}
	if c.StartHour < 0 || c.EndHour > 23 || c.StartHour >= c.EndHour {
		return fmt.Errorf("%w: window %d-%d", ErrInvalidCalendar, c.StartHour, c.EndHour)
	}
	if len(c.Weekend) >= 7 {
		return fmt.Errorf("%w: no working days", ErrInvalidCalendar)
	}
	return nil
}

// IsWorkday reports whether t's calendar date, in the calendar location, is neither
// a weekend day nor a holiday.
func (c WorkCalendar) IsWorkday(t time.Time, holidays HolidaySet) bool {
	t = t.In(c.Location)
	if _, ok := c.Weekend[t.Weekday()]; ok {
		return false
	}
	return !holidays.Contains(t)
}

func (c WorkCalendar) dayStart(t time.Time, addDays int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+addDays, c.StartHour, 0, 0, 0, c.Location)
}

// Deadline returns the instant at which hours of working time have elapsed since
// start. Non-working days and the time outside [StartHour, EndHour) are skipped.
func (c WorkCalendar) Deadline(start time.Time, hours int, holidays HolidaySet) (time.Time, error) {
	if hours <= 0 {
		return time.Time{}, fmt.Errorf("%w: got %d", ErrNonPositiveHours, hours)
	}
	if err := c.Validate(); err != nil {
		return time.Time{}, err
	}
	remaining := hours * 60
	cur := start.In(c.Location)
	for remaining > 0 {
		switch {
		case !c.IsWorkday(cur, holidays):
			cur = c.dayStart(cur, 1)
		case cur.Hour() < c.StartHour:
			cur = c.dayStart(cur, 0)
		case cur.Hour() >= c.EndHour:
			cur = c.dayStart(cur, 1)
		default:
			left := (c.EndHour-cur.Hour())*60 - cur.Minute()
			n := min(remaining, left)
			cur = cur.Add(time.Duration(n) * time.Minute)
			remaining -= n
			if remaining > 0 {
				cur = c.dayStart(cur, 1)
			}
		}
	}
	return cur, nil
}

// BusinessDuration returns the working time between start and end. Arguments may
// be given in either order.
func (c WorkCalendar) BusinessDuration(start, end time.Time, holidays HolidaySet) time.Duration {
	if end.Before(start) {
		start, end = end, start
	}
	start = start.In(c.Location)
	end = end.In(c.Location)
	total := time.Duration(0)
	cur := start
	for cur.Before(end) {
		next := time.Date(cur.Year(), cur.Month(), cur.Day()+1, 0, 0, 0, 0, c.Location)
		if !c.IsWorkday(cur, holidays) {
			cur = next
			continue
		}
		bhStart := time.Date(cur.Year(), cur.Month(), cur.Day(), c.StartHour, 0, 0, 0, c.Location)
		bhEnd := time.Date(cur.Year(), cur.Month(), cur.Day(), c.EndHour, 0, 0, 0, c.Location)
		if cur.Before(bhStart) {
			cur = bhStart
		}
		if !cur.Before(bhEnd) {
			cur = next
			continue
		}
		e := minTime(end, bhEnd)
		if e.After(cur) {
			total += e.Sub(cur)
		}
		cur = e
		if cur.Equal(bhEnd) {
			cur = next
		}
	}
	return total
}

// ParseInstant parses an RFC 3339 timestamp.
func ParseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrMalformedInstant, s, err)
	}
	return t, nil
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
