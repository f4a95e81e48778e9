package imaging

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/anthonynsimon/bild/imgio"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/pa-report/internal/pasearch"
)

// Default annotation colours per source.
const (
	EDAXMarkColor   = "#ff3030"
	ImageJMarkColor = "#30c0ff"
)

// Mark is one annotated point on a field image.
type Mark struct {
	At    image.Point
	Label string
	Color color.RGBA
}

// Annotate draws a crosshair with a label at every mark on a copy of img.
// arm is the crosshair half length in pixels.
func Annotate(img image.Image, marks []Mark, arm int) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	labelBg := color.RGBA{0, 0, 0, 180}
	for _, m := range marks {
		for d := -arm; d <= arm; d++ {
			setIn(result, m.At.X+d, m.At.Y, m.Color)
			setIn(result, m.At.X, m.At.Y+d, m.Color)
		}
		if m.Label != "" {
			drawLabel(result, m.At.X+arm+2, m.At.Y+2, m.Label, m.Color, labelBg)
		}
	}
	return result
}

// FieldMarks converts the particles of one field to marks. EDAX centroids
// are measured from the bottom of the image and are flipped.
func FieldMarks(table *pasearch.Table, field int, bounds image.Rectangle, c color.RGBA) []Mark {
	var marks []Mark
	for _, i := range table.OnField(field) {
		p := table.Particles[i]
		if math.IsNaN(p.CentX) || math.IsNaN(p.CentY) {
			continue
		}
		y := int(p.CentY)
		if table.Source == pasearch.SourceEDAX {
			y = bounds.Min.Y + bounds.Dy() - (y - bounds.Min.Y)
		}
		marks = append(marks, Mark{
			At:    image.Pt(int(p.CentX), y),
			Label: strconv.Itoa(p.Part),
			Color: c,
		})
	}
	return marks
}

// AnnotatedName is the file name of an annotated field image.
func AnnotatedName(field int, ext string) string {
	return fmt.Sprintf("fld%04d_annotated%s", field, ext)
}

// WriteAnnotatedFields overlays the particles of both tables on every EDAX
// field image and writes the results to opts.OutDir. It returns the written
// paths.
func WriteAnnotatedFields(ctx context.Context, cache *ImageCache, edax, imagej *pasearch.Table, opts ThumbnailOptions) ([]string, error) {
	encoder, err := encoderFor(opts.OutExt)
	if err != nil {
		return nil, err
	}
	edaxColor, err := ParseHexColor(EDAXMarkColor)
	if err != nil {
		return nil, err
	}
	imagejColor, err := ParseHexColor(ImageJMarkColor)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create annotation directory: %w", err)
	}

	var written []string
	for _, field := range edax.FieldsInOrder() {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		path := FieldImagePath(opts.FieldsDir, field, opts.FieldExt)
		img, err := cache.Load(path)
		if err != nil {
			return written, fmt.Errorf("field %d: %w", field, err)
		}

		marks := FieldMarks(edax, field, img.Bounds(), edaxColor)
		if imagej != nil {
			marks = append(marks, FieldMarks(imagej, field, img.Bounds(), imagejColor)...)
		}

		out := filepath.Join(opts.OutDir, AnnotatedName(field, opts.OutExt))
		if err := imgio.Save(out, Annotate(img, marks, 6), encoder); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", out, err)
		}
		written = append(written, out)
	}
	return written, nil
}

func setIn(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.Set(x, y, c)
	}
}

// drawLabel writes text in the 7x13 basic font over a translucent backdrop
// whose top-left corner is (x, y).
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(fg), Face: face}

	backdrop := image.Rect(x-1, y-1, x+d.MeasureString(text).Ceil()+1, y+face.Height+1)
	draw.Draw(img, backdrop.Intersect(img.Bounds()), image.NewUniform(bg), image.Point{}, draw.Over)

	d.Dot = fixed.P(x, y+face.Ascent)
	d.DrawString(text)
}
