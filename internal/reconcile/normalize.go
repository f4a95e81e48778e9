package reconcile

import (
	"math"

	"github.com/ironsheep/pa-report/internal/pasearch"
)

// Frame describes the ImageJ sensor frame.
type Frame struct {
	Width     int     // pixels
	Height    int     // pixels
	YOffset   int     // sensor crop offset in pixels, applied after the y flip
	PixelSize float64 // µm per pixel
}

// DefaultFrame is the 2048x1600 camera frame with a 160 px crop offset.
var DefaultFrame = Frame{
	Width:     2048,
	Height:    1600,
	YOffset:   160,
	PixelSize: pasearch.DefaultPixelSize,
}

// Center returns the pixel that maps onto the field's stage origin.
func (f Frame) Center() (x, y float64) {
	return float64(f.Width) / 2, float64(f.Height)/2 - float64(f.YOffset)
}

// ToStage converts a pixel centroid to stage mm given the field origin in µm:
//
//	x = ox/1000 + ps/1000 * (px - W/2)
//	y = oy/1000 + ps/1000 * (H - py - H/2 - offset)
func (f Frame) ToStage(origin pasearch.Origin, px, py float64) (x, y float64) {
	scale := f.PixelSize / 1000
	w, h := float64(f.Width), float64(f.Height)
	x = origin.X/1000 + scale*(px-w/2)
	y = origin.Y/1000 + scale*(h-py-h/2-float64(f.YOffset))
	return x, y
}

// ToPixel is the inverse of ToStage.
func (f Frame) ToPixel(origin pasearch.Origin, sx, sy float64) (px, py float64) {
	scale := f.PixelSize / 1000
	w, h := float64(f.Width), float64(f.Height)
	px = (sx-origin.X/1000)/scale + w/2
	py = h - h/2 - float64(f.YOffset) - (sy-origin.Y/1000)/scale
	return px, py
}

// NormalizeImageJ assigns stage positions to every ImageJ particle using the
// EDAX field origins. Particles on a field the EDAX table does not know get
// NaN coordinates. It returns the number of such particles.
func NormalizeImageJ(edax, imagej *pasearch.Table, frame Frame) int {
	origins := edax.Origins()
	missing := 0
	for i := range imagej.Particles {
		p := &imagej.Particles[i]
		origin, ok := origins[p.Field]
		if !ok {
			p.StageX, p.StageY = math.NaN(), math.NaN()
			missing++
			continue
		}
		p.FieldOriginX, p.FieldOriginY = origin.X, origin.Y
		p.StageX, p.StageY = frame.ToStage(origin, p.CentX, p.CentY)
	}
	return missing
}
