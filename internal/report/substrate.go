package report

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Substrate map geometry in stage mm.
const (
	SubstrateRadius = 12.5
	MapExtent       = 13.0
	MinRadius       = 0.1
	MaxRadius       = 0.3
	MarkerArm       = 0.4
)

// MapView is the SVG viewport of the substrate map. Stage y points up, so
// the template mirrors y when placing particles.
type MapView struct {
	ViewBox         string
	SubstrateRadius float64
	MarkerArm       float64
	Ticks           []float64
}

// DefaultMapView shows ±MapExtent mm around the substrate centre.
func DefaultMapView() MapView {
	var ticks []float64
	for t := -10.0; t <= 10; t += 5 {
		ticks = append(ticks, t)
	}
	return MapView{
		ViewBox:         fmt.Sprintf("%g %g %g %g", -MapExtent, -MapExtent, 2*MapExtent, 2*MapExtent),
		SubstrateRadius: SubstrateRadius,
		MarkerArm:       MarkerArm,
		Ticks:           ticks,
	}
}

// sizeMapper maps particle diameters linearly onto [MinRadius, MaxRadius].
type sizeMapper struct {
	lo, hi float64
	ok     bool
}

func newSizeMapper(diams []float64) sizeMapper {
	vals := make([]float64, 0, len(diams))
	for _, d := range diams {
		if !math.IsNaN(d) && !math.IsInf(d, 0) {
			vals = append(vals, d)
		}
	}
	if len(vals) == 0 {
		return sizeMapper{}
	}
	return sizeMapper{lo: floats.Min(vals), hi: floats.Max(vals), ok: true}
}

func (m sizeMapper) radius(d float64) float64 {
	if !m.ok || math.IsNaN(d) || math.IsInf(d, 0) {
		return MinRadius
	}
	if m.hi == m.lo {
		return (MinRadius + MaxRadius) / 2
	}
	t := (d - m.lo) / (m.hi - m.lo)
	return MinRadius + t*(MaxRadius-MinRadius)
}
