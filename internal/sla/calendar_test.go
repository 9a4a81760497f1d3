package sla

import (
	"errors"
	"testing"
	"time"
)

func bogota(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Bogota")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestDeadlineScenarios(t *testing.T) {
	cal := DefaultWorkCalendar()
	loc := cal.Location
	at := func(day, hour, min int) time.Time { return time.Date(2026, 10, day, hour, min, 0, 0, loc) }
	cases := []struct {
		name  string
		start time.Time
		hours int
		hs    HolidaySet
		want  time.Time
	}{
		{"within one window", at(19, 9, 0), 2, nil, at(19, 11, 0)},
		{"rolls to next day", at(19, 16, 0), 4, nil, at(20, 10, 0)},
		{"skips weekend", at(23, 15, 0), 8, nil, at(26, 13, 0)},
		{"folds early morning", at(19, 3, 0), 2, nil, at(19, 9, 0)},
		{"after hours", at(19, 18, 30), 1, nil, at(20, 8, 0)},
		{"starts saturday", at(24, 10, 0), 2, nil, at(26, 9, 0)},
		{"starts sunday night", at(25, 23, 59), 3, nil, at(26, 10, 0)},
		{"ends exactly at window end", at(19, 7, 0), 10, nil, at(19, 17, 0)},
		{"last hour of window", at(19, 16, 0), 1, nil, at(19, 17, 0)},
		{"two full days", at(19, 7, 0), 20, nil, at(20, 17, 0)},
		{"keeps minutes", at(19, 16, 45), 1, nil, at(20, 7, 45)},
		{"holiday skipped", at(19, 16, 0), 4, NewHolidaySet(Date{2026, time.October, 20}), at(21, 10, 0)},
		{"starts on holiday", at(19, 9, 0), 2, NewHolidaySet(Date{2026, time.October, 19}), at(20, 9, 0)},
		{"holiday before weekend", at(22, 16, 0), 2, NewHolidaySet(Date{2026, time.October, 23}), at(26, 8, 0)},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.Deadline(tt.start, tt.hours, tt.hs)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("expected %v got %v", tt.want, got)
			}
			if got.Location() != loc {
				t.Fatalf("expected result in %v, got %v", loc, got.Location())
			}
		})
	}
}

func TestDeadlineConvertsZone(t *testing.T) {
	cal := DefaultWorkCalendar()
	start := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC) // 09:00 in Bogotá
	got, err := cal.Deadline(start, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 10, 19, 11, 0, 0, 0, bogota(t))
	if !got.Equal(want) {
		t.Fatalf("expected %v got %v", want, got)
	}
}

func TestDeadlineRejectsNonPositiveHours(t *testing.T) {
	cal := DefaultWorkCalendar()
	for _, h := range []int{0, -1} {
		if _, err := cal.Deadline(time.Now(), h, nil); !errors.Is(err, ErrNonPositiveHours) {
			t.Fatalf("hours=%d: expected ErrNonPositiveHours, got %v", h, err)
		}
	}
}

func TestDeadlineRejectsInvalidCalendar(t *testing.T) {
	cal := DefaultWorkCalendar()
	cal.StartHour, cal.EndHour = 17, 7
	if _, err := cal.Deadline(time.Now(), 2, nil); !errors.Is(err, ErrInvalidCalendar) {
		t.Fatalf("expected ErrInvalidCalendar, got %v", err)
	}
	if _, err := NewWorkCalendar("Not/AZone", 7, 17); !errors.Is(err, ErrInvalidCalendar) {
		t.Fatalf("expected ErrInvalidCalendar for bad zone, got %v", err)
	}
	all := []time.Weekday{0, 1, 2, 3, 4, 5, 6}
	if _, err := NewWorkCalendar("UTC", 7, 17, all...); !errors.Is(err, ErrInvalidCalendar) {
		t.Fatalf("expected ErrInvalidCalendar without working days, got %v", err)
	}
}

func TestDeadlineIdempotentAndMonotonic(t *testing.T) {
	cal := DefaultWorkCalendar()
	start := time.Date(2026, 10, 22, 13, 17, 0, 0, cal.Location)
	hs := NewHolidaySet(Date{2026, time.October, 26}, Date{2026, time.November, 2})
	prev := start
	for h := 1; h <= 240; h++ {
		a, err := cal.Deadline(start, h, hs)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := cal.Deadline(start, h, hs)
		if !a.Equal(b) {
			t.Fatalf("h=%d: not idempotent: %v vs %v", h, a, b)
		}
		if a.Before(prev) {
			t.Fatalf("h=%d: %v before previous %v", h, a, prev)
		}
		if !a.After(start) {
			t.Fatalf("h=%d: deadline %v not after start", h, a)
		}
		prev = a
	}
}

func TestDeadlineNeverConsumesNonWorkingTime(t *testing.T) {
	cal := DefaultWorkCalendar()
	hs := NewHolidaySet(Date{2026, time.October, 21})
	base := time.Date(2026, 10, 17, 0, 0, 0, 0, cal.Location)
	for i := 0; i < 7*24*60; i += 37 {
		start := base.Add(time.Duration(i) * time.Minute)
		for _, h := range []int{2, 4, 8, 56} {
			due, err := cal.Deadline(start, h, hs)
			if err != nil {
				t.Fatal(err)
			}
			if got := cal.BusinessDuration(start, due, hs); got != time.Duration(h)*time.Hour {
				t.Fatalf("start=%v h=%d due=%v: working time %v", start, h, due, got)
			}
			if !cal.IsWorkday(due, hs) {
				t.Fatalf("start=%v h=%d: due %v on a non-working day", start, h, due)
			}
			if hr := due.Hour(); hr < cal.StartHour || hr > cal.EndHour || (hr == cal.EndHour && due.Minute() > 0) {
				t.Fatalf("start=%v h=%d: due %v outside window", start, h, due)
			}
		}
	}
}

func TestDeadlineAcrossDST(t *testing.T) {
	cal, err := NewWorkCalendar("America/New_York", 9, 17, DefaultWeekend()...)
	if err != nil {
		t.Fatal(err)
	}
	loc := cal.Location
	cases := []struct {
		name  string
		start time.Time
		want  time.Time
	}{
		{"spring forward", time.Date(2026, 3, 6, 16, 0, 0, 0, loc), time.Date(2026, 3, 9, 10, 0, 0, 0, loc)},
		{"fall back", time.Date(2026, 10, 30, 16, 0, 0, 0, loc), time.Date(2026, 11, 2, 10, 0, 0, 0, loc)},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.Deadline(tt.start, 2, nil)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) || got.Hour() != 10 {
				t.Fatalf("expected %v got %v", tt.want, got)
			}
		})
	}
}

func TestBusinessDurationBasic(t *testing.T) {
	cal := DefaultWorkCalendar()
	loc := cal.Location
	start := time.Date(2026, 10, 19, 16, 0, 0, 0, loc) // Mon 4pm
	end := time.Date(2026, 10, 20, 10, 0, 0, 0, loc)   // Tue 10am
	if d := cal.BusinessDuration(start, end, nil); d != 4*time.Hour {
		t.Fatalf("expected 4h got %v", d)
	}
	if d := cal.BusinessDuration(end, start, nil); d != 4*time.Hour {
		t.Fatalf("expected 4h for reversed args got %v", d)
	}
}

func TestBusinessDurationHoliday(t *testing.T) {
	cal := DefaultWorkCalendar()
	loc := cal.Location
	hs := NewHolidaySet(Date{2026, time.October, 21})
	start := time.Date(2026, 10, 20, 16, 0, 0, 0, loc)
	end := time.Date(2026, 10, 22, 10, 0, 0, 0, loc)
	if d := cal.BusinessDuration(start, end, hs); d != 4*time.Hour {
		t.Fatalf("expected 4h got %v", d)
	}
}

func TestParseInstant(t *testing.T) {
	got, err := ParseInstant("2026-10-19T09:00:00-05:00")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected instant %v", got)
	}
	if _, err := ParseInstant("2026-10-19T09:00:00.123Z"); err != nil {
		t.Fatalf("fractional seconds: %v", err)
	}
	for _, bad := range []string{"", "19/10/2026 09:00", "2026-10-19", "yesterday"} {
		if _, err := ParseInstant(bad); !errors.Is(err, ErrMalformedInstant) {
			t.Fatalf("%q: expected ErrMalformedInstant, got %v", bad, err)
		}
	}
}

func TestHolidaySet(t *testing.T) {
	a := NewHolidaySet(Date{2026, time.January, 1})
	b := NewHolidaySet(Date{2025, time.December, 25}, Date{2026, time.January, 12})
	m := a.Merge(b)
	if len(m) != 3 || len(a) != 1 {
		t.Fatalf("merge mutated or lost dates: %v %v", m, a)
	}
	if got := m.Year(2026); len(got) != 2 {
		t.Fatalf("expected 2 dates in 2026, got %v", got)
	}
	sorted := m.Sorted()
	if sorted[0].String() != "2025-12-25" || sorted[2].String() != "2026-01-12" {
		t.Fatalf("unexpected order: %v", sorted)
	}
	loc := bogota(t)
	if !m.Contains(time.Date(2026, 1, 1, 23, 59, 0, 0, loc)) {
		t.Fatalf("expected late evening to match by date")
	}
	var empty HolidaySet
	if empty.Contains(time.Now()) {
		t.Fatalf("nil set must be empty")
	}
	d, err := ParseDate("2026-08-07")
	if err != nil || d != (Date{2026, time.August, 7}) {
		t.Fatalf("ParseDate: %v %v", d, err)
	}
}

func TestDeadlineStartSeconds(t *testing.T) {
	cal := DefaultWorkCalendar()
	loc := cal.Location
	cases := []struct {
		name  string
		start time.Time
		want  time.Time
	}{
		{"same day keeps seconds", time.Date(2026, 10, 19, 9, 0, 30, 0, loc), time.Date(2026, 10, 19, 10, 0, 30, 0, loc)},
		{"day roll drops seconds", time.Date(2026, 10, 19, 16, 59, 30, 0, loc), time.Date(2026, 10, 20, 7, 59, 0, 0, loc)},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.Deadline(tt.start, 1, nil)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("expected %v got %v", tt.want, got)
			}
		})
	}
}
