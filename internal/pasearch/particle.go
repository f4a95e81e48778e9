package pasearch

import (
	"math"
	"sort"
)

// Source identifies the instrument that produced a particle record.
type Source string

const (
	// SourceEDAX is the EDX/EDAX particle search (reference system).
	SourceEDAX Source = "edax"

	// SourceImageJ is the ImageJ optical measurement (comparison system).
	SourceImageJ Source = "imagej"
)

// Particle is one detected particle. Records are keyed by (Field, Part)
// within a source; there is no identity across sources until matched.
type Particle struct {
	Source Source `json:"source"`
	Field  int    `json:"field"`
	Part   int    `json:"part"`

	// StageX and StageY are the stage position in mm. ImageJ records get
	// them from reconcile.NormalizeImageJ.
	StageX float64 `json:"stage_x"`
	StageY float64 `json:"stage_y"`

	// CentX and CentY are the pixel centroid within the field image.
	CentX float64 `json:"cent_x"`
	CentY float64 `json:"cent_y"`

	// FieldOriginX and FieldOriginY are the stage position of the field in µm (EDAX only).
	FieldOriginX float64 `json:"field_origin_x"`
	FieldOriginY float64 `json:"field_origin_y"`

	// Width and Height are the bounding box in pixels (EDAX only).
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Composition float64 `json:"composition"` // wt %
	AvgDiam     float64 `json:"avg_diam"`    // µm
	Circ        float64 `json:"circ"`
	Area        float64 `json:"area"`
	Perim       float64 `json:"perim"`

	Extra map[string]float64 `json:"extra,omitempty"`
}

// newParticle returns a particle with every measurement set to NaN.
func newParticle(src Source) Particle {
	nan := math.NaN()
	return Particle{
		Source: src,
		StageX: nan, StageY: nan,
		CentX: nan, CentY: nan,
		FieldOriginX: nan, FieldOriginY: nan,
		Width: nan, Height: nan,
		Composition: nan, AvgDiam: nan, Circ: nan, Area: nan, Perim: nan,
	}
}

// Origin is the stage position of a field in µm.
type Origin struct {
	X float64
	Y float64
}

// Table is the ordered particle list of one source. Order is the row order
// of the input file and is significant for matching and thumbnail naming.
type Table struct {
	Source    Source
	Path      string
	Columns   []string
	Particles []Particle
}

// Len returns the number of particles.
func (t *Table) Len() int {
	return len(t.Particles)
}

// Fields returns the distinct field ids in ascending order.
func (t *Table) Fields() []int {
	seen := make(map[int]bool)
	var fields []int
	for _, p := range t.Particles {
		if !seen[p.Field] {
			seen[p.Field] = true
			fields = append(fields, p.Field)
		}
	}
	sort.Ints(fields)
	return fields
}

// FieldsInOrder returns the distinct field ids in order of first appearance.
func (t *Table) FieldsInOrder() []int {
	seen := make(map[int]bool)
	var fields []int
	for _, p := range t.Particles {
		if !seen[p.Field] {
			seen[p.Field] = true
			fields = append(fields, p.Field)
		}
	}
	return fields
}

// OnField returns the indexes of the particles on field, in table order.
func (t *Table) OnField(field int) []int {
	var idx []int
	for i, p := range t.Particles {
		if p.Field == field {
			idx = append(idx, i)
		}
	}
	return idx
}

// Origins returns the stage origin of every field. The first row of a field
// wins; later rows of the same field are expected to repeat it.
func (t *Table) Origins() map[int]Origin {
	origins := make(map[int]Origin)
	for _, p := range t.Particles {
		if _, ok := origins[p.Field]; ok {
			continue
		}
		origins[p.Field] = Origin{X: p.FieldOriginX, Y: p.FieldOriginY}
	}
	return origins
}

// Ordinal returns the 1-based position of particle i among the particles
// of its field. Thumbnails are named by field and ordinal.
func (t *Table) Ordinal(i int) int {
	n := 0
	field := t.Particles[i].Field
	for j := 0; j <= i; j++ {
		if t.Particles[j].Field == field {
			n++
		}
	}
	return n
}

// Marker is a named fixed reference point on the substrate, in mm.
type Marker struct {
	Name   string  `json:"name"`
	StageX float64 `json:"stage_x"`
	StageY float64 `json:"stage_y"`
}
