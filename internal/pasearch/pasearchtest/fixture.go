// Package pasearchtest writes synthetic PA search runs for tests.
package pasearchtest

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// EDAXRow is one row of a synthetic EDAX stub export.
type EDAXRow struct {
	Part, Field     int
	XCent, YCent    float64 // pixel, origin bottom-left
	XStage, YStage  float64 // field origin, µm
	StgX, StgY      float64 // particle, mm
	AvgDiam         float64
	XWidth, YHeight float64
	UM              float64
}

// ImageJRow is one row of a synthetic ImageJ results table.
type ImageJRow struct {
	Part         int
	Label        string
	X, Y         float64
	Major, Minor float64
	Circ         float64
}

// MarkerRow is one reference marker.
type MarkerRow struct {
	Name string
	X, Y float64
}

// Run describes the files to write. Zero-valued parts are skipped, except
// the summary which is always written.
type Run struct {
	Name      string
	Summary   []string
	EDAX      []EDAXRow
	ImageJ    []ImageJRow
	Markers   []MarkerRow
	FieldSize image.Point // field images are written when non-zero
}

// DefaultSummary is a stub summary in the instrument's layout.
var DefaultSummary = []string{
	"Stub Summary",
	"Sample: demo",
	"Mag: 500",
	"Acc. Voltage: 20.0 kV",
	"Start Time: 10:42:17",
	"Particles Counted: 3",
	"Particles Analyzed: 3",
}

// WriteRun writes run below root and returns the run directory.
func WriteRun(t testing.TB, root string, run Run) string {
	t.Helper()

	name := run.Name
	if name == "" {
		name = "sample"
	}
	dir := filepath.Join(root, name)
	mkdir(t, dir)

	summary := run.Summary
	if summary == nil {
		summary = DefaultSummary
	}
	write(t, filepath.Join(dir, "Stub Summary.txt"), strings.Join(summary, "\r\n")+"\r\n")

	if run.EDAX != nil {
		write(t, filepath.Join(dir, name+"_stub01.csv"), EDAXText(run.EDAX))
	}
	if run.ImageJ != nil {
		write(t, filepath.Join(dir, "IJ_"+name+".csv"), ImageJText(run.ImageJ))
	}
	if run.Markers != nil {
		mkdir(t, filepath.Join(dir, "refmarkers"))
		write(t, filepath.Join(dir, "refmarkers", "marker_pos.txt"), MarkerText(run.Markers))
	}
	if run.FieldSize != (image.Point{}) {
		mkdir(t, filepath.Join(dir, "fields"))
		seen := make(map[int]bool)
		for _, r := range run.EDAX {
			if seen[r.Field] {
				continue
			}
			seen[r.Field] = true
			WriteFieldImage(t, filepath.Join(dir, "fields", fmt.Sprintf("fld%04d.png", r.Field)), run.FieldSize.X, run.FieldSize.Y)
		}
	}
	return dir
}

// EDAXText renders rows as an EDAX stub export with bare \r line endings,
// a 14 line preamble and // comments.
func EDAXText(rows []EDAXRow) string {
	var b strings.Builder
	preamble := []string{
		"// EDAX Particle Analysis export",
		"Stub: 01",
		"Fields: auto",
		"Magnification: 500",
		"kV: 20.0",
		"Spot: 4",
		"Detector: SE",
		"Threshold: 128",
		"Min Size: 0.5",
		"Max Size: 50.0",
		"Elements: U",
		"Quant: eZAF",
		"Units: um",
		"//",
	}
	for _, l := range preamble {
		b.WriteString(l + "\r")
	}
	b.WriteString("Part, Field, X_cent, Y_cent, X_stage, Y_stage, StgX, StgY, AvgDiam, Area, Perim, X_width, Y_height, UM\r")
	for _, r := range rows {
		fmt.Fprintf(&b, "%d, %d, %g, %g, %g, %g, %g, %g, %g, %g, %g, %g, %g, %g // row\r",
			r.Part, r.Field, r.XCent, r.YCent, r.XStage, r.YStage, r.StgX, r.StgY,
			r.AvgDiam, r.AvgDiam*r.AvgDiam, 3*r.AvgDiam, r.XWidth, r.YHeight, r.UM)
	}
	return b.String()
}

// ImageJText renders rows as an ImageJ results table.
func ImageJText(rows []ImageJRow) string {
	var b strings.Builder
	b.WriteString(" ,Label,Area,Mean,X,Y,Perim.,Major,Minor,Circ.\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%d,%s,%g,%g,%g,%g,%g,%g,%g,%g\n",
			r.Part, r.Label, r.Major*r.Minor, 128.0, r.X, r.Y, 2*(r.Major+r.Minor), r.Major, r.Minor, r.Circ)
	}
	return b.String()
}

// MarkerText renders markers in the marker_pos.txt layout.
func MarkerText(markers []MarkerRow) string {
	var b strings.Builder
	b.WriteString("# Reference marker positions\n")
	b.WriteString("# stage coordinates in mm\n")
	b.WriteString("Substrate: demo\n")
	b.WriteString("\n")
	b.WriteString("MarkerType, StgX, StgY\n")
	for _, m := range markers {
		fmt.Fprintf(&b, "%s, %g, %g\n", m.Name, m.X, m.Y)
	}
	return b.String()
}

// WriteFieldImage writes a PNG whose pixel at (x, y) encodes x in red and
// y in green (modulo 256), so crops can be located by sampling.
func WriteFieldImage(t testing.TB, path string, width, height int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 0, 255})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create field image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode field image: %v", err)
	}
}

func mkdir(t testing.TB, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func write(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
