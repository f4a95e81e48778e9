package reconcile

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/pa-report/internal/errors"
	"github.com/ironsheep/pa-report/internal/pasearch"
)

// DefaultThreshold is the match distance in mm (5 µm).
const DefaultThreshold = 0.005

// Strategy selects how candidates within the threshold are accepted.
type Strategy string

const (
	// StrategyFirst accepts the first candidate in table order.
	StrategyFirst Strategy = "first"
	// StrategyMutual accepts mutual nearest neighbours only.
	StrategyMutual Strategy = "mutual"
)

// ParseStrategy converts a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyFirst:
		return StrategyFirst, nil
	case StrategyMutual:
		return StrategyMutual, nil
	default:
		return "", errors.NewValidationError("match.strategy", s, "must be first or mutual")
	}
}

// MatchOptions controls Pair.
type MatchOptions struct {
	Threshold float64 // mm; pairs at or beyond it never match
	Strategy  Strategy
}

// Match pairs an EDAX particle with an ImageJ particle on the same field.
type Match struct {
	Field    int     `json:"field" yaml:"field"`
	PartA    int     `json:"part_edax" yaml:"part_edax"`
	PartB    int     `json:"part_imagej" yaml:"part_imagej"`
	Distance float64 `json:"distance_mm" yaml:"distance_mm"`

	// IndexA and IndexB locate the particles in their tables.
	IndexA int `json:"-" yaml:"-"`
	IndexB int `json:"-" yaml:"-"`
}

// Distance is the Euclidean distance between two stage positions in mm.
func Distance(a, b pasearch.Particle) float64 {
	return floats.Distance([]float64{a.StageX, a.StageY}, []float64{b.StageX, b.StageY}, 2)
}

// Pair matches EDAX particles (a) to ImageJ particles (b) whose stage
// positions have already been normalized. Fields without candidates
// contribute no matches.
func Pair(a, b *pasearch.Table, opts MatchOptions) ([]Match, error) {
	if opts.Threshold <= 0 || math.IsNaN(opts.Threshold) {
		return nil, errors.NewValidationError("threshold", opts.Threshold, "must be positive")
	}

	switch opts.Strategy {
	case "", StrategyFirst:
		return pairFirst(a, b, opts.Threshold), nil
	case StrategyMutual:
		return pairMutual(a, b, opts.Threshold), nil
	default:
		return nil, errors.NewValidationError("strategy", string(opts.Strategy), fmt.Sprintf("unknown strategy %q", opts.Strategy))
	}
}

func pairFirst(a, b *pasearch.Table, threshold float64) []Match {
	var matches []Match
	for _, field := range a.Fields() {
		candidates := b.OnField(field)
		if len(candidates) == 0 {
			continue
		}
		for _, ia := range a.OnField(field) {
			pa := a.Particles[ia]
			for _, ib := range candidates {
				pb := b.Particles[ib]
				d := Distance(pa, pb)
				if d < threshold {
					matches = append(matches, newMatch(field, a, b, ia, ib, d))
					break
				}
			}
		}
	}
	return matches
}

func pairMutual(a, b *pasearch.Table, threshold float64) []Match {
	var matches []Match
	for _, field := range a.Fields() {
		candidates := b.OnField(field)
		if len(candidates) == 0 {
			continue
		}
		refs := a.OnField(field)

		// nearest B for every A, and nearest A for every B, under the threshold
		bestB := nearest(a, refs, b, candidates, threshold)
		bestA := nearest(b, candidates, a, refs, threshold)

		for _, ia := range refs {
			ib, ok := bestB[ia]
			if !ok {
				continue
			}
			if back, ok := bestA[ib]; !ok || back != ia {
				continue
			}
			matches = append(matches, newMatch(field, a, b, ia, ib, Distance(a.Particles[ia], b.Particles[ib])))
		}
	}
	return matches
}

// nearest maps each index in from to the closest index in to, considering
// only distances below threshold. Ties keep the earlier candidate.
func nearest(src *pasearch.Table, from []int, dst *pasearch.Table, to []int, threshold float64) map[int]int {
	best := make(map[int]int, len(from))
	for _, i := range from {
		bestDist := threshold
		for _, j := range to {
			d := Distance(src.Particles[i], dst.Particles[j])
			if d < bestDist {
				bestDist = d
				best[i] = j
			}
		}
	}
	return best
}

func newMatch(field int, a, b *pasearch.Table, ia, ib int, d float64) Match {
	return Match{
		Field:    field,
		PartA:    a.Particles[ia].Part,
		PartB:    b.Particles[ib].Part,
		Distance: d,
		IndexA:   ia,
		IndexB:   ib,
	}
}

// Stats summarizes a pairing.
type Stats struct {
	EDAX       int `json:"edax" yaml:"edax"`
	ImageJ     int `json:"imagej" yaml:"imagej"`
	Matches    int `json:"matches" yaml:"matches"`
	UnmatchedA int `json:"unmatched_edax" yaml:"unmatched_edax"`
	UnmatchedB int `json:"unmatched_imagej" yaml:"unmatched_imagej"`

	// SharedB counts ImageJ particles claimed by more than one EDAX particle.
	SharedB int `json:"shared_imagej" yaml:"shared_imagej"`

	MeanDistance float64 `json:"mean_distance_mm" yaml:"mean_distance_mm"`
}

// Summarize counts matched and unmatched particles on both sides.
func Summarize(a, b *pasearch.Table, matches []Match) Stats {
	s := Stats{EDAX: a.Len(), ImageJ: b.Len(), Matches: len(matches)}

	claimedA := make(map[int]bool)
	claimedB := make(map[int]int)
	dists := make([]float64, 0, len(matches))
	for _, m := range matches {
		claimedA[m.IndexA] = true
		claimedB[m.IndexB]++
		dists = append(dists, m.Distance)
	}
	for _, n := range claimedB {
		if n > 1 {
			s.SharedB++
		}
	}
	s.UnmatchedA = s.EDAX - len(claimedA)
	s.UnmatchedB = s.ImageJ - len(claimedB)
	if len(dists) > 0 {
		s.MeanDistance = stat.Mean(dists, nil)
	}
	return s
}
