package sla

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TierRule binds a tier to the keywords that select it.
type TierRule struct {
	Tier     Tier
	Keywords []string
}

// Classifier maps ticket text to a tier. Matching is substring containment on
// normalized text, so a keyword inside a longer word still matches.
type Classifier struct {
	exclusions []string
	rules      []TierRule
	fallback   Tier
}

// NewClassifier builds a classifier. Rules are evaluated in the given order after
// the exclusions; fallback is returned when nothing matches.
func NewClassifier(exclusions []string, rules []TierRule, fallback Tier) *Classifier {
	c := &Classifier{fallback: fallback}
	for _, k := range exclusions {
		if k = Normalize(k); k != "" {
			c.exclusions = append(c.exclusions, k)
		}
	}
	for _, r := range rules {
		nr := TierRule{Tier: r.Tier}
		for _, k := range r.Keywords {
			if k = Normalize(k); k != "" {
				nr.Keywords = append(nr.Keywords, k)
			}
		}
		c.rules = append(c.rules, nr)
	}
	return c
}

// DefaultClassifier returns the helpdesk's keyword table.
func DefaultClassifier() *Classifier {
	return NewClassifier(
		[]string{"cierre de tienda", "apertura de tienda", "traslado de tienda"},
		[]TierRule{
			{Tier: T1, Keywords: []string{"monitor principal", "bloqueo general", "sesiones bloqueadas"}},
			{Tier: T2, Keywords: []string{"internet"}},
			{Tier: T4, Keywords: []string{
				"cambio", "entrega", "repotenciación",
				"acompañamiento de equipo", "embalaje de equipo", "envío de equipo",
			}},
			{Tier: T5, Keywords: []string{"alquiler", "cotización", "compras"}},
		},
		T3,
	)
}

var defaultClassifier = DefaultClassifier()

// Classify uses the default keyword table.
func Classify(category, subcategory, article string) Tier {
	return defaultClassifier.Classify(category, subcategory, article)
}

// Classify returns the tier for the ticket's category fields. Exclusions win
// over every tier rule.
func (c *Classifier) Classify(category, subcategory, article string) Tier {
	text := Normalize(category + " " + subcategory + " " + article)
	for _, k := range c.exclusions {
		if strings.Contains(text, k) {
			return None
		}
	}
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(text, k) {
				return r.Tier
			}
		}
	}
	return c.fallback
}

// Normalize strips diacritics, lowercases and trims s.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(strings.ToLower(out))
}
