package reconcile

import (
	"math"

	"github.com/ironsheep/pa-report/internal/pasearch"
)

// Row is one particle of a joined table together with the particle it was
// matched to on the other side, if any.
type Row struct {
	Primary  pasearch.Particle
	Partner  *pasearch.Particle // nil when unmatched
	Distance float64            // mm, NaN when unmatched

	// Ordinal is the 1-based position of Primary among the particles of its
	// field; thumbnails are named after it.
	Ordinal int
}

// Matched reports whether the row has a partner.
func (r Row) Matched() bool {
	return r.Partner != nil
}

// Circ returns the primary circularity, falling back to the partner's.
// EDAX exports carry no circularity, so matched ImageJ rows supply it.
func (r Row) Circ() float64 {
	if !math.IsNaN(r.Primary.Circ) || r.Partner == nil {
		return r.Primary.Circ
	}
	return r.Partner.Circ
}

// Composition returns the primary composition, falling back to the partner's.
func (r Row) Composition() float64 {
	if !math.IsNaN(r.Primary.Composition) || r.Partner == nil {
		return r.Primary.Composition
	}
	return r.Partner.Composition
}

// JoinOnA keeps every EDAX particle in table order with its match, if any.
// When several matches name the same EDAX particle the first one wins.
func JoinOnA(a, b *pasearch.Table, matches []Match) []Row {
	byA := make(map[int]Match, len(matches))
	for _, m := range matches {
		if _, dup := byA[m.IndexA]; !dup {
			byA[m.IndexA] = m
		}
	}
	return join(a, b, byA, func(m Match) int { return m.IndexB })
}

// JoinOnB keeps every ImageJ particle in table order with the EDAX particle
// that claimed it. An ImageJ particle claimed by several EDAX particles
// appears once, with its first claimant.
func JoinOnB(a, b *pasearch.Table, matches []Match) []Row {
	byB := make(map[int]Match, len(matches))
	for _, m := range matches {
		if _, dup := byB[m.IndexB]; !dup {
			byB[m.IndexB] = m
		}
	}
	return join(b, a, byB, func(m Match) int { return m.IndexA })
}

func join(primary, other *pasearch.Table, byIndex map[int]Match, partnerIndex func(Match) int) []Row {
	rows := make([]Row, 0, primary.Len())
	ordinals := make(map[int]int)
	for i, p := range primary.Particles {
		ordinals[p.Field]++
		row := Row{Primary: p, Distance: math.NaN(), Ordinal: ordinals[p.Field]}
		if m, ok := byIndex[i]; ok {
			partner := other.Particles[partnerIndex(m)]
			row.Partner = &partner
			row.Distance = m.Distance
		}
		rows = append(rows, row)
	}
	return rows
}
