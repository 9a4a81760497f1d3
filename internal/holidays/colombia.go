// Package holidays supplies regional non-working days to the SLA scheduler.
package holidays

import (
	"time"

	"github.com/rickar/cal/v2"

	"github.com/mark3748/helpdesk-ans/internal/sla"
)

// nextMonday moves a holiday that does not fall on a Monday to the following
// Monday (Ley Emiliani).
var nextMonday = []cal.AltDay{
	{Day: time.Tuesday, Offset: 6},
	{Day: time.Wednesday, Offset: 5},
	{Day: time.Thursday, Offset: 4},
	{Day: time.Friday, Offset: 3},
	{Day: time.Saturday, Offset: 2},
	{Day: time.Sunday, Offset: 1},
}

func fixed(name string, m time.Month, d int) *cal.Holiday {
	return &cal.Holiday{Name: name, Type: cal.ObservancePublic, Month: m, Day: d, Func: cal.CalcDayOfMonth}
}

func moved(name string, m time.Month, d int) *cal.Holiday {
	h := fixed(name, m, d)
	h.Observed = nextMonday
	return h
}

func easter(name string, offset int) *cal.Holiday {
	return &cal.Holiday{Name: name, Type: cal.ObservancePublic, Offset: offset, Func: cal.CalcEasterOffset}
}

// ColombiaHolidays are the national public holidays. Easter-based Monday holidays
// carry their already-moved offsets.
var ColombiaHolidays = []*cal.Holiday{
	fixed("Año Nuevo", time.January, 1),
	moved("Día de los Reyes Magos", time.January, 6),
	moved("Día de San José", time.March, 19),
	easter("Jueves Santo", -3),
	easter("Viernes Santo", -2),
	fixed("Día del Trabajo", time.May, 1),
	easter("Ascensión del Señor", 43),
	easter("Corpus Christi", 64),
	easter("Sagrado Corazón", 71),
	moved("San Pedro y San Pablo", time.June, 29),
	fixed("Día de la Independencia", time.July, 20),
	fixed("Batalla de Boyacá", time.August, 7),
	moved("La Asunción de la Virgen", time.August, 15),
	moved("Día de la Raza", time.October, 12),
	moved("Todos los Santos", time.November, 1),
	moved("Independencia de Cartagena", time.November, 11),
	fixed("Inmaculada Concepción", time.December, 8),
	fixed("Navidad", time.December, 25),
}

// Calendar computes a year's holidays from rule definitions.
type Calendar struct {
	Rules []*cal.Holiday
}

// Colombia returns the Colombian national holiday calendar.
func Colombia() Calendar { return Calendar{Rules: ColombiaHolidays} }

// HolidaysFor returns the observed dates of every rule in year.
func (c Calendar) HolidaysFor(year int) sla.HolidaySet {
	out := sla.HolidaySet{}
	for _, h := range c.Rules {
		_, observed := h.Calc(year)
		if observed.IsZero() {
			continue
		}
		out[sla.DateOf(observed)] = struct{}{}
	}
	return out
}

// Named returns the rule names keyed by observed date.
func (c Calendar) Named(year int) map[sla.Date]string {
	out := map[sla.Date]string{}
	for _, h := range c.Rules {
		_, observed := h.Calc(year)
		if observed.IsZero() {
			continue
		}
		out[sla.DateOf(observed)] = h.Name
	}
	return out
}
