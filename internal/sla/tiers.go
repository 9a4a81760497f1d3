package sla

// Tier is the committed resolution-time class of a ticket.
type Tier string

const (
	T1   Tier = "T1"
	T2   Tier = "T2"
	T3   Tier = "T3"
	T4   Tier = "T4"
	T5   Tier = "T5"
	None Tier = "NONE"
)

var tierHours = map[Tier]int{
	T1:   2,
	T2:   4,
	T3:   8,
	T4:   56,
	T5:   240,
	None: 0,
}

// RequiredHours returns the working hours allowed for the tier. Unknown tiers and
// None have no deadline.
func (t Tier) RequiredHours() int { return tierHours[t] }

// HasDeadline reports whether a deadline is computed for the tier.
func (t Tier) HasDeadline() bool { return t.RequiredHours() > 0 }

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	_, ok := tierHours[t]
	return ok
}

// Policy describes a tier for display.
type Policy struct {
	Tier          Tier   `json:"tier"`
	Name          string `json:"name"`
	RequiredHours int    `json:"required_hours"`
}

// Policies returns the tier table in priority order.
func Policies() []Policy {
	return []Policy{
		{Tier: T1, Name: "Crítico", RequiredHours: T1.RequiredHours()},
		{Tier: T2, Name: "Conectividad", RequiredHours: T2.RequiredHours()},
		{Tier: T3, Name: "Estándar", RequiredHours: T3.RequiredHours()},
		{Tier: T4, Name: "Logística de equipos", RequiredHours: T4.RequiredHours()},
		{Tier: T5, Name: "Compras y alquileres", RequiredHours: T5.RequiredHours()},
		{Tier: None, Name: "Sin ANS", RequiredHours: 0},
	}
}
