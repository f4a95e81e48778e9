package pasearch

import (
	"fmt"

	"github.com/ironsheep/pa-report/internal/errors"
)

// EDAXPreambleLines is the number of instrument header lines before the
// column names in an EDAX stub export.
const EDAXPreambleLines = 14

// EDAXComment starts a comment in an EDAX stub export.
const EDAXComment = "//"

// EDAXOptions controls how an EDAX stub export is read.
type EDAXOptions struct {
	// CompositionColumn names the wt % column plotted as content (default "UM").
	CompositionColumn string
}

// ParseEDAX reads an EDAX stub export. Part, Field, StgX and StgY are
// required columns; the others are read when present.
func ParseEDAX(path string, opts EDAXOptions) (*Table, error) {
	if opts.CompositionColumn == "" {
		opts.CompositionColumn = "UM"
	}

	raw, err := readRawTable(path, EDAXPreambleLines, EDAXComment)
	if err != nil {
		return nil, err
	}

	names := headerNames(raw.header)
	col := make(map[string]int, len(names))
	for i, name := range names {
		col[name] = i
	}
	for _, req := range []string{"Part", "Field", "StgX", "StgY"} {
		if _, ok := col[req]; !ok {
			return nil, errors.NewParseError(path, 0, fmt.Errorf("missing required column %q", req))
		}
	}

	composition := sanitizeName(opts.CompositionColumn, -1)
	known := map[string]func(p *Particle, v float64){
		"StgX":     func(p *Particle, v float64) { p.StageX = v },
		"StgY":     func(p *Particle, v float64) { p.StageY = v },
		"X_cent":   func(p *Particle, v float64) { p.CentX = v },
		"Y_cent":   func(p *Particle, v float64) { p.CentY = v },
		"X_stage":  func(p *Particle, v float64) { p.FieldOriginX = v },
		"Y_stage":  func(p *Particle, v float64) { p.FieldOriginY = v },
		"X_width":  func(p *Particle, v float64) { p.Width = v },
		"Y_height": func(p *Particle, v float64) { p.Height = v },
		"AvgDiam":  func(p *Particle, v float64) { p.AvgDiam = v },
		"Area":     func(p *Particle, v float64) { p.Area = v },
		"Perim":    func(p *Particle, v float64) { p.Perim = v },
		"Circ":     func(p *Particle, v float64) { p.Circ = v },
	}

	t := &Table{Source: SourceEDAX, Path: path, Columns: names}
	for r, row := range raw.rows {
		line := raw.lines[r]
		p := newParticle(SourceEDAX)

		for i, cell := range row {
			v, err := parseNumber(cell)
			if err != nil {
				return nil, errors.NewParseError(path, line, fmt.Errorf("column %s: %w", names[i], err))
			}

			switch names[i] {
			case "Part":
				if p.Part, err = toID(v); err != nil {
					return nil, errors.NewParseError(path, line, fmt.Errorf("column Part: %w", err))
				}
			case "Field":
				if p.Field, err = toID(v); err != nil {
					return nil, errors.NewParseError(path, line, fmt.Errorf("column Field: %w", err))
				}
			default:
				claimed := false
				if names[i] == composition {
					p.Composition = v
					claimed = true
				}
				if set, ok := known[names[i]]; ok {
					set(&p, v)
					claimed = true
				}
				if claimed {
					continue
				}
				if p.Extra == nil {
					p.Extra = make(map[string]float64)
				}
				p.Extra[names[i]] = v
			}
		}
		t.Particles = append(t.Particles, p)
	}
	return t, nil
}
