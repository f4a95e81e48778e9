package report

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"gonum.org/v1/gonum/floats"
)

const (
	plotWidth  = 420
	plotHeight = 340
	dotRadius  = 4
)

// dotSeries is a scatter series whose dots are drawn by the page rather than
// by go-chart. go-chart lays out the title and axes and hands the series the
// plot box; Render records where every dot falls so the page can draw it
// with its particle index for the tooltip script.
type dotSeries struct {
	xs, ys []float64
	index  []int
	colors []string

	dots []dot
}

// dot is one rendered scatter point in SVG pixels.
type dot struct {
	X, Y  int
	Index int
	Color string
}

func (s *dotSeries) add(p Point, y float64) {
	if !isFinite(p.AvgDiam) || !isFinite(y) {
		return
	}
	s.xs = append(s.xs, p.AvgDiam)
	s.ys = append(s.ys, y)
	s.index = append(s.index, p.Index)
	s.colors = append(s.colors, p.Color)
}

func (s *dotSeries) GetName() string { return "" }
func (s *dotSeries) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (s *dotSeries) GetStyle() chart.Style { return chart.Style{} }
func (s *dotSeries) Len() int { return len(s.xs) }
func (s *dotSeries) GetValues(i int) (x, y float64) { return s.xs[i], s.ys[i] }

func (s *dotSeries) Validate() error {
	if len(s.xs) != len(s.ys) {
		return fmt.Errorf("got %d x values and %d y values", len(s.xs), len(s.ys))
	}
	return nil
}

func (s *dotSeries) Render(_ chart.Renderer, box chart.Box, xrange, yrange chart.Range, _ chart.Style) {
	s.dots = s.dots[:0]
	for i := range s.xs {
		s.dots = append(s.dots, dot{
			X:     box.Left + xrange.Translate(s.xs[i]),
			Y:     box.Bottom - yrange.Translate(s.ys[i]),
			Index: s.index[i],
			Color: s.colors[i],
		})
	}
}

func buildPlots(points []Point) ([]Plot, error) {
	var content, circ dotSeries
	for _, p := range points {
		content.add(p, p.Composition)
		circ.add(p, p.Circ)
	}

	charts := []struct {
		title, yName string
		series       *dotSeries
	}{
		{"Content vs Particle Size", "Content (wt %)", &content},
		{"Circularity vs Particle Size", "Circularity", &circ},
	}

	plots := make([]Plot, 0, len(charts))
	for _, c := range charts {
		svg, err := renderScatter(c.title, "Avg. diameter (µm)", c.yName, c.series)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.title, err)
		}
		plots = append(plots, Plot{Title: c.title, SVG: svg})
	}
	return plots, nil
}

// renderScatter renders the chart frame with go-chart and appends the dots
// as circles carrying data-i. An empty series renders nothing.
func renderScatter(title, xName, yName string, s *dotSeries) (template.HTML, error) {
	if s.Len() == 0 {
		return "", nil
	}

	graph := chart.Chart{
		Title:      title,
		Width:      plotWidth,
		Height:     plotHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: xName, Range: paddedRange(s.xs)},
		YAxis:      chart.YAxis{Name: yName, Range: paddedRange(s.ys)},
		Series:     []chart.Series{s},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}

	svg := buf.String()
	end := strings.LastIndex(svg, "</svg>")
	if end < 0 {
		return "", fmt.Errorf("chart output is not an SVG document")
	}
	var dots strings.Builder
	dots.WriteString(`<g class="dots">`)
	for _, d := range s.dots {
		fmt.Fprintf(&dots, `<circle class="dot" data-i="%d" cx="%d" cy="%d" r="%d" fill="%s"/>`,
			d.Index, d.X, d.Y, dotRadius, template.HTMLEscapeString(d.Color))
	}
	dots.WriteString(`</g>`)

	return template.HTML(svg[:end] + dots.String() + svg[end:]), nil
}

// paddedRange spans vals with a 5% margin; a single value gets ±1.
func paddedRange(vals []float64) *chart.ContinuousRange {
	lo, hi := floats.Min(vals), floats.Max(vals)
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(lo)*0.05, 1)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
