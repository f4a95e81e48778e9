package pasearch

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ironsheep/pa-report/internal/errors"
)

// DefaultPixelSize is the ImageJ image pixel size in µm.
const DefaultPixelSize = 0.23142628587258555

var (
	fieldStem  = regexp.MustCompile(`(?i)fld(\d+)`)
	bareNumber = regexp.MustCompile(`^\d+$`)
)

// ParseImageJ reads an ImageJ "Analyze Particles" results table.
//
// Columns are renamed to the shared schema: the unnamed row index becomes
// Part, Label becomes Field (the number after "fld" in the image name, so
// "stub1_fld0007.png" is field 7), X/Y become the pixel centroid and "Circ."
// the circularity. AvgDiam is the mean of the non-blank Major and Minor
// cells scaled by pixelSize.
func ParseImageJ(path string, pixelSize float64) (*Table, error) {
	text, err := readText(path)
	if err != nil {
		return nil, errors.NewParseError(path, 0, err)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, errors.NewParseError(path, 1, fmt.Errorf("read header: %w", err))
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		switch name {
		case "", "Unnamed: 0":
			name = "Part"
		case "Label":
			name = "Field"
		case "Circ.":
			name = "Circ"
		}
		col[name] = i
		header[i] = name
	}
	for _, req := range []string{"Part", "Field", "X", "Y"} {
		if _, ok := col[req]; !ok {
			return nil, errors.NewParseError(path, 1, fmt.Errorf("missing required column %q", req))
		}
	}

	t := &Table{Source: SourceImageJ, Path: path, Columns: header}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// csv.ParseError already names the line
			return nil, errors.NewParseError(path, 0, err)
		}
		line, _ := r.FieldPos(0)
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != len(header) {
			return nil, errors.NewParseError(path, line,
				fmt.Errorf("got %d columns, header has %d", len(rec), len(header)))
		}

		p, err := imageJParticle(header, rec, pixelSize)
		if err != nil {
			return nil, errors.NewParseError(path, line, err)
		}
		t.Particles = append(t.Particles, p)
	}
	return t, nil
}

func imageJParticle(header, rec []string, pixelSize float64) (Particle, error) {
	p := newParticle(SourceImageJ)
	major, minor := math.NaN(), math.NaN()

	for i, name := range header {
		cell := strings.TrimSpace(rec[i])
		if name == "Field" {
			field, err := fieldFromLabel(cell)
			if err != nil {
				return p, err
			}
			p.Field = field
			continue
		}

		v, err := parseNumber(cell)
		if err != nil {
			// ImageJ tables may carry text columns besides Label; only
			// the columns below must be numeric.
			switch name {
			case "Part", "X", "Y", "Circ", "Major", "Minor", "Area", "Perim.":
				return p, fmt.Errorf("column %s: %w", name, err)
			}
			continue
		}

		switch name {
		case "Part":
			id, err := toID(v)
			if err != nil {
				return p, fmt.Errorf("column Part: %w", err)
			}
			p.Part = id
		case "X":
			p.CentX = v
		case "Y":
			p.CentY = v
		case "Circ":
			p.Circ = v
		case "Area":
			p.Area = v
		case "Perim.":
			p.Perim = v
		case "Major":
			major = v
		case "Minor":
			minor = v
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]float64)
			}
			p.Extra[name] = v
		}
	}

	p.AvgDiam = meanFinite(major, minor) * pixelSize
	return p, nil
}

// meanFinite averages the values that are not NaN; NaN when none are.
func meanFinite(vals ...float64) float64 {
	sum, n := 0.0, 0
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// fieldFromLabel extracts the field number from an ImageJ image label:
// the digits after "fld", or the whole name without extension when it is
// a bare number.
func fieldFromLabel(label string) (int, error) {
	digits := ""
	if m := fieldStem.FindStringSubmatch(label); m != nil {
		digits = m[1]
	} else if stem := strings.TrimSuffix(label, filepath.Ext(label)); bareNumber.MatchString(stem) {
		digits = stem
	}
	if digits == "" {
		return 0, fmt.Errorf("label %q has no field number", label)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("label %q: %w", label, err)
	}
	return n, nil
}
