package imaging

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"

	"github.com/ironsheep/pa-report/internal/pasearch"
)

// ImageJThumbnailSize is the crop size used for ImageJ particles, whose
// export carries no bounding box.
var ImageJThumbnailSize = image.Pt(32, 25)

// ThumbnailOptions controls WriteThumbnails.
type ThumbnailOptions struct {
	FieldsDir string // directory holding fld%04d<FieldExt>
	FieldExt  string
	OutDir    string
	OutExt    string
	Scale     int

	// FlipY measures centroids from the bottom of the field image.
	FlipY bool

	// Size is the crop size. A zero Size uses each particle's bounding box,
	// falling back to ImageJThumbnailSize when the box is missing.
	Size image.Point
}

// OptionsFor returns the thumbnail options conventional for a source: EDAX
// crops its bounding box with a flipped y axis, ImageJ crops a fixed window.
func OptionsFor(src pasearch.Source, fieldsDir, fieldExt, outDir, outExt string, scale int) ThumbnailOptions {
	opts := ThumbnailOptions{
		FieldsDir: fieldsDir,
		FieldExt:  fieldExt,
		OutDir:    outDir,
		OutExt:    outExt,
		Scale:     scale,
	}
	if src == pasearch.SourceEDAX {
		opts.FlipY = true
	} else {
		opts.Size = ImageJThumbnailSize
	}
	return opts
}

// ThumbnailFile describes one written thumbnail.
type ThumbnailFile struct {
	Index   int             `json:"index"` // particle index in the table
	Field   int             `json:"field"`
	Ordinal int             `json:"ordinal"`
	Path    string          `json:"path"`
	Window  image.Rectangle `json:"-"`
}

// ThumbnailSummary is the outcome of WriteThumbnails.
type ThumbnailSummary struct {
	Files []ThumbnailFile `json:"files"`

	// Skipped lists particle indexes without a usable centroid.
	Skipped []int `json:"skipped,omitempty"`
}

// WriteThumbnails crops every particle of table from its field image and
// writes the magnified crops to opts.OutDir as ThumbnailName files. Field
// images are read once each through cache. The first load or write error
// aborts the run.
func WriteThumbnails(ctx context.Context, cache *ImageCache, table *pasearch.Table, opts ThumbnailOptions) (*ThumbnailSummary, error) {
	if opts.Scale == 0 {
		opts.Scale = DefaultScale
	}
	encoder, err := encoderFor(opts.OutExt)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	summary := &ThumbnailSummary{}
	for _, field := range table.FieldsInOrder() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		path := FieldImagePath(opts.FieldsDir, field, opts.FieldExt)
		img, err := cache.Load(path)
		if err != nil {
			return summary, fmt.Errorf("field %d: %w", field, err)
		}

		for ordinal, i := range table.OnField(field) {
			p := table.Particles[i]
			if math.IsNaN(p.CentX) || math.IsNaN(p.CentY) {
				summary.Skipped = append(summary.Skipped, i)
				continue
			}

			size := clampSize(particleSize(p, opts.Size), img.Bounds())
			center := image.Pt(int(p.CentX), int(p.CentY))
			window, err := CropWindow(img.Bounds(), center, size, opts.FlipY)
			if err != nil {
				return summary, fmt.Errorf("field %d part %d: %w", field, p.Part, err)
			}
			thumb, err := Thumbnail(img, center, size, opts.FlipY, opts.Scale)
			if err != nil {
				return summary, fmt.Errorf("field %d part %d: %w", field, p.Part, err)
			}

			out := filepath.Join(opts.OutDir, ThumbnailName(field, ordinal+1, opts.OutExt))
			if err := imgio.Save(out, thumb, encoder); err != nil {
				return summary, fmt.Errorf("failed to write thumbnail %s: %w", out, err)
			}
			summary.Files = append(summary.Files, ThumbnailFile{
				Index:   i,
				Field:   field,
				Ordinal: ordinal + 1,
				Path:    out,
				Window:  window,
			})
		}
		cache.Evict(path)
	}
	return summary, nil
}

func particleSize(p pasearch.Particle, fixed image.Point) image.Point {
	if fixed != (image.Point{}) {
		return fixed
	}
	if math.IsNaN(p.Width) || math.IsNaN(p.Height) || p.Width < 1 || p.Height < 1 {
		return ImageJThumbnailSize
	}
	return image.Pt(int(p.Width), int(p.Height))
}

func clampSize(size image.Point, bounds image.Rectangle) image.Point {
	return image.Pt(min(size.X, bounds.Dx()), min(size.Y, bounds.Dy()))
}

func encoderFor(ext string) (imgio.Encoder, error) {
	switch strings.ToLower(ext) {
	case ".png", "":
		return imgio.PNGEncoder(), nil
	case ".jpg", ".jpeg":
		return imgio.JPEGEncoder(95), nil
	case ".bmp":
		return imgio.BMPEncoder(), nil
	default:
		return nil, fmt.Errorf("unsupported thumbnail format %q", ext)
	}
}
