package sla

import (
	"fmt"
	"time"
)

// Subject holds the free-text fields a ticket author picks.
type Subject struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Article     string `json:"article"`
}

// Assessment is the SLA outcome for a ticket.
type Assessment struct {
	Tier          Tier       `json:"tier"`
	RequiredHours int        `json:"required_hours"`
	DueAt         *time.Time `json:"due_at,omitempty"`
}

// HolidayLookup returns the merged holidays of the given years.
type HolidayLookup func(years ...int) (HolidaySet, error)

// Assess classifies s and, when the tier carries a deadline, computes it from
// opened. Holidays are requested for the opening year and the next one so that
// deadlines rolling over New Year skip January holidays.
func Assess(cal WorkCalendar, cls *Classifier, s Subject, opened time.Time, lookup HolidayLookup) (Assessment, error) {
	if cls == nil {
		cls = defaultClassifier
	}
	tier := cls.Classify(s.Category, s.Subcategory, s.Article)
	out := Assessment{Tier: tier, RequiredHours: tier.RequiredHours()}
	if !tier.HasDeadline() {
		return out, nil
	}
	if err := cal.Validate(); err != nil {
		return Assessment{}, err
	}
	year := opened.In(cal.Location).Year()
	var hs HolidaySet
	if lookup != nil {
		var err error
		hs, err = lookup(year, year+1)
		if err != nil {
			return Assessment{}, fmt.Errorf("holidays %d-%d: %w", year, year+1, err)
		}
	}
	due, err := cal.Deadline(opened, out.RequiredHours, hs)
	if err != nil {
		return Assessment{}, err
	}
	out.DueAt = &due
	return out, nil
}

// ProviderLookup adapts a HolidayProvider to a HolidayLookup.
func ProviderLookup(p HolidayProvider) HolidayLookup {
	return func(years ...int) (HolidaySet, error) {
		out := HolidaySet{}
		for _, y := range years {
			out = out.Merge(p.HolidaysFor(y))
		}
		return out, nil
	}
}
