package imaging

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// viridis holds evenly spaced stops of the Viridis palette.
var viridis = []string{
	"#440154", "#472d7b", "#3b528b", "#2c728e", "#21918c",
	"#28ae80", "#5ec962", "#addc30", "#fde725",
}

// NaNColor is used for values that are missing.
const NaNColor = "#b22222" // firebrick

// ColorMap maps a value range linearly onto a palette.
type ColorMap struct {
	Low, High float64
	stops     []colorful.Color
	nan       colorful.Color
}

// Viridis returns a Viridis colour map over [low, high].
func Viridis(low, high float64) *ColorMap {
	cm, err := NewColorMap(low, high, viridis, NaNColor)
	if err != nil {
		panic(err) // palette constants are valid
	}
	return cm
}

// NewColorMap builds a colour map from hex stops ("#rrggbb").
func NewColorMap(low, high float64, stops []string, nan string) (*ColorMap, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("colour map needs at least two stops")
	}
	if !(high > low) {
		return nil, fmt.Errorf("invalid colour map range [%g, %g]", low, high)
	}
	cm := &ColorMap{Low: low, High: high}
	for _, s := range stops {
		c, err := colorful.Hex(s)
		if err != nil {
			return nil, fmt.Errorf("invalid colour %q: %w", s, err)
		}
		cm.stops = append(cm.stops, c)
	}
	c, err := colorful.Hex(nan)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q: %w", nan, err)
	}
	cm.nan = c
	return cm, nil
}

// At returns the colour of v. Values outside the range are clamped; NaN
// gets the NaN colour.
func (cm *ColorMap) At(v float64) colorful.Color {
	if math.IsNaN(v) {
		return cm.nan
	}
	t := (v - cm.Low) / (cm.High - cm.Low)
	t = math.Max(0, math.Min(1, t))

	pos := t * float64(len(cm.stops)-1)
	i := int(pos)
	if i >= len(cm.stops)-1 {
		return cm.stops[len(cm.stops)-1]
	}
	f := pos - float64(i)
	if f == 0 {
		return cm.stops[i]
	}
	return cm.stops[i].BlendLab(cm.stops[i+1], f).Clamped()
}

// Hex returns the colour of v as "#rrggbb".
func (cm *ColorMap) Hex(v float64) string {
	return cm.At(v).Hex()
}

// ParseHexColor parses "#rrggbb" or "#rgb" into an opaque RGBA colour.
func ParseHexColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
