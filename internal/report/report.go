// Package report renders the reconciled particle list as a self-contained
// HTML page: sample information, a substrate map with hover thumbnails,
// scatter plots and the particle table.
package report

import (
	"bufio"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ironsheep/pa-report/internal/imaging"
	"github.com/ironsheep/pa-report/internal/pasearch"
	"github.com/ironsheep/pa-report/internal/reconcile"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var tmpl = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"num":  formatNumber,
	"date": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
}).ParseFS(templateFS, "templates/report.html.tmpl"))

// Composition colour scale in wt %.
const (
	CompositionLow  = 0.0
	CompositionHigh = 100.0
)

// Sample describes the sample beyond what the instrument records.
type Sample struct {
	ID      string
	CRM     string
	Remarks string
	UAmount string
}

// Key identifies a particle within one source.
type Key struct {
	Field int
	Part  int
}

// Input is everything the report shows.
type Input struct {
	Title     string
	Sample    Sample
	Summary   *pasearch.Summary
	Rows      []reconcile.Row
	Stats     reconcile.Stats
	Options   reconcile.MatchOptions
	Markers   []pasearch.Marker
	Warnings  []string
	Generated time.Time

	// Thumbnails maps particles of ThumbnailSource to thumbnail paths.
	Thumbnails      map[Key]string
	ThumbnailSource pasearch.Source

	// OutputPath is where the report will be written; thumbnail links are
	// made relative to its directory.
	OutputPath string
}

// InfoItem is one labelled line of the sample information block.
type InfoItem struct {
	Label string
	Value string
}

// Point is one particle of the report.
type Point struct {
	Index       int
	Field       int
	Part        int
	Ordinal     int
	X, Y        float64 // stage mm
	Composition float64
	AvgDiam     float64
	Circ        float64
	Matched     bool
	PartImageJ  int
	DistanceUM  float64
	Color       string
	Radius      float64 // map radius in mm
	Thumb       string  // href relative to the report, empty if none
}

// OnMap reports whether the particle has a stage position.
func (p Point) OnMap() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// MapY is the y coordinate in the SVG frame, whose y axis points down.
func (p Point) MapY() float64 {
	return -p.Y
}

// MarkerPoint is a reference marker drawn as a cross on the map, in SVG
// coordinates.
type MarkerPoint struct {
	Name           string
	X, Y           float64
	X1, X2, Y1, Y2 float64
}

func markerPoints(markers []pasearch.Marker) []MarkerPoint {
	out := make([]MarkerPoint, 0, len(markers))
	for _, m := range markers {
		x, y := m.StageX, -m.StageY
		out = append(out, MarkerPoint{
			Name: m.Name,
			X:    x,
			Y:    y,
			X1:   x - MarkerArm,
			X2:   x + MarkerArm,
			Y1:   y - MarkerArm,
			Y2:   y + MarkerArm,
		})
	}
	return out
}

// Plot is a rendered chart.
type Plot struct {
	Title string
	SVG   template.HTML
}

// Report is the view model of the HTML page.
type Report struct {
	Title     string
	Generated time.Time
	Info      []InfoItem
	Stats     reconcile.Stats
	Options   reconcile.MatchOptions
	Warnings  []string
	Points    []Point
	Markers   []MarkerPoint
	Map       MapView
	Plots     []Plot
	Data      template.JS
}

// Build computes the view model.
func Build(in Input) (*Report, error) {
	generated := in.Generated
	if generated.IsZero() {
		generated = time.Now()
	}

	r := &Report{
		Title:     in.Title,
		Generated: generated,
		Info:      sampleInfo(in.Sample, in.Summary, generated),
		Stats:     in.Stats,
		Options:   in.Options,
		Warnings:  in.Warnings,
		Markers:   markerPoints(in.Markers),
		Map:       DefaultMapView(),
	}
	if in.Sample.ID != "" {
		r.Title = fmt.Sprintf("%s: %s", in.Title, in.Sample.ID)
	}

	colors := imaging.Viridis(CompositionLow, CompositionHigh)
	diams := make([]float64, 0, len(in.Rows))
	for _, row := range in.Rows {
		diams = append(diams, row.Primary.AvgDiam)
	}
	sizes := newSizeMapper(diams)

	baseDir := filepath.Dir(in.OutputPath)
	for i, row := range in.Rows {
		p := Point{
			Index:       i,
			Field:       row.Primary.Field,
			Part:        row.Primary.Part,
			Ordinal:     row.Ordinal,
			X:           row.Primary.StageX,
			Y:           row.Primary.StageY,
			Composition: row.Composition(),
			AvgDiam:     row.Primary.AvgDiam,
			Circ:        row.Circ(),
			Matched:     row.Matched(),
			DistanceUM:  row.Distance * 1000,
			Radius:      sizes.radius(row.Primary.AvgDiam),
		}
		p.Color = colors.Hex(p.Composition)
		if row.Partner != nil {
			p.PartImageJ = row.Partner.Part
		}
		if path := thumbnailFor(in, row); path != "" {
			href, err := relativeHref(baseDir, path)
			if err != nil {
				return nil, err
			}
			p.Thumb = href
		}
		r.Points = append(r.Points, p)
	}

	plots, err := buildPlots(r.Points)
	if err != nil {
		return nil, err
	}
	r.Plots = plots

	data, err := json.Marshal(pointData(r.Points))
	if err != nil {
		return nil, fmt.Errorf("failed to encode report data: %w", err)
	}
	r.Data = template.JS(data)

	return r, nil
}

// Render writes the HTML page to w.
func (r *Report) Render(w io.Writer) error {
	if err := tmpl.Execute(w, r); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// WriteFile renders the report to path.
func (r *Report) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := r.Render(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

func sampleInfo(s Sample, summary *pasearch.Summary, generated time.Time) []InfoItem {
	items := []InfoItem{
		{"Sample", s.ID},
		{"CRM", s.CRM},
		{"U amount", s.UAmount},
		{"Remarks", s.Remarks},
	}
	if summary != nil {
		for _, key := range []string{
			pasearch.KeyMagnification,
			pasearch.KeyVoltage,
			pasearch.KeyParticlesCounted,
			pasearch.KeyParticlesAnalyzed,
		} {
			items = append(items, InfoItem{key, summary.Value(key)})
		}
	}
	items = append(items, InfoItem{"Date", generated.Format("2006-01-02")})

	kept := items[:0]
	for _, it := range items {
		if it.Value != "" {
			kept = append(kept, it)
		}
	}
	return kept
}

func thumbnailFor(in Input, row reconcile.Row) string {
	if len(in.Thumbnails) == 0 {
		return ""
	}
	p := &row.Primary
	if p.Source != in.ThumbnailSource {
		p = row.Partner
	}
	if p == nil {
		return ""
	}
	return in.Thumbnails[Key{Field: p.Field, Part: p.Part}]
}

func relativeHref(baseDir, path string) (string, error) {
	if !filepath.IsAbs(path) || !filepath.IsAbs(baseDir) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		path = abs
		if baseDir, err = filepath.Abs(baseDir); err != nil {
			return "", err
		}
	}
	rel, err := filepath.Rel(baseDir, path)
	if err != nil {
		return "", fmt.Errorf("thumbnail %s: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

// formatNumber prints v with prec decimals, or "n/a" for NaN.
func formatNumber(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// pointJSON is the client side record; missing values become null.
type pointJSON struct {
	Field       int      `json:"field"`
	Part        int      `json:"part"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	Composition *float64 `json:"composition"`
	AvgDiam     *float64 `json:"avg_diam"`
	Circ        *float64 `json:"circ"`
	PartImageJ  *int     `json:"part_imagej"`
	DistanceUM  *float64 `json:"distance_um"`
	Thumb       string   `json:"thumb,omitempty"`
}

func pointData(points []Point) []pointJSON {
	out := make([]pointJSON, 0, len(points))
	for _, p := range points {
		j := pointJSON{
			Field:       p.Field,
			Part:        p.Part,
			X:           finite(p.X),
			Y:           finite(p.Y),
			Composition: finite(p.Composition),
			AvgDiam:     finite(p.AvgDiam),
			Circ:        finite(p.Circ),
			DistanceUM:  finite(p.DistanceUM),
			Thumb:       p.Thumb,
		}
		if p.Matched {
			part := p.PartImageJ
			j.PartImageJ = &part
		}
		out = append(out, j)
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
