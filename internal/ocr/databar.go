package ocr

import (
	"fmt"
	"image"
	"regexp"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/pa-report/internal/errors"
)

// DefaultBandHeight is the height in pixels of the data bar at the bottom
// of a field image.
const DefaultBandHeight = 64

// DataBar holds the acquisition settings printed on a field image.
type DataBar struct {
	// Magnification is the nominal magnification, e.g. 500 for "500x".
	// Zero when not found.
	Magnification float64 `json:"magnification,omitempty"`

	// VoltageKV is the accelerating voltage in kV. Zero when not found.
	VoltageKV float64 `json:"voltage_kv,omitempty"`

	Text string `json:"text"`
}

var (
	magLabelled  = regexp.MustCompile(`(?i)\bmag\w*\.?\s*[:=]?\s*(\d+(?:[.,]\d+)?)\s*(k[x×])?`)
	magSuffixed  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(k)?\s*[x×]`)
	frameSize    = regexp.MustCompile(`(?i)\d+(?:[x×]|\s+[x×]\s+)\d+`)
	kvSuffixed   = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*kv\b`)
	kvLabelled   = regexp.MustCompile(`(?i)\b(?:kv|hv|acc\.?\s*v\w*)\s*[:=]?\s*(\d+(?:[.,]\d+)?)`)
	decimalComma = strings.NewReplacer(",", ".")
)

// ParseDataBar extracts magnification and voltage from OCR text. It fails
// with errors.ErrParse when neither is present.
func ParseDataBar(text string) (*DataBar, error) {
	bar := &DataBar{Text: strings.TrimSpace(text)}

	for _, find := range []func(string) []string{magLabelled.FindStringSubmatch, suffixedMagnification} {
		if m := find(text); m != nil {
			v, err := number(m[1])
			if err != nil {
				continue
			}
			if m[2] != "" {
				v *= 1000
			}
			bar.Magnification = v
			break
		}
	}
	for _, re := range []*regexp.Regexp{kvSuffixed, kvLabelled} {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, err := number(m[1]); err == nil {
				bar.VoltageKV = v
				break
			}
		}
	}

	if bar.Magnification == 0 && bar.VoltageKV == 0 {
		return nil, fmt.Errorf("%w: no magnification or voltage in %q", errors.ErrParse, bar.Text)
	}
	return bar, nil
}

// suffixedMagnification finds "<n>x" or "<n> kx" once frame sizes such as
// 2048x1600 are removed.
func suffixedMagnification(text string) []string {
	return magSuffixed.FindStringSubmatch(frameSize.ReplaceAllString(text, " "))
}

func number(s string) (float64, error) {
	return strconv.ParseFloat(decimalComma.Replace(s), 64)
}

// Band returns the bottom band of img, grayscaled and magnified 2x for
// recognition.
func Band(img image.Image, bandHeight int) (image.Image, error) {
	b := img.Bounds()
	if bandHeight <= 0 || bandHeight > b.Dy() {
		return nil, errors.NewValidationError("band_height", bandHeight,
			fmt.Sprintf("must be between 1 and %d", b.Dy()))
	}
	band := imaging.Crop(img, image.Rect(b.Min.X, b.Max.Y-bandHeight, b.Max.X, b.Max.Y))
	gray := imaging.Grayscale(band)
	return imaging.Resize(gray, gray.Bounds().Dx()*2, 0, imaging.Lanczos), nil
}

// ReadDataBar OCRs the data bar of a field image and parses it.
func ReadDataBar(path string, bandHeight int, opts Options) (*DataBar, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	band, err := Band(img, bandHeight)
	if err != nil {
		return nil, err
	}
	res, err := ExtractText(band, opts)
	if err != nil {
		return nil, err
	}
	return ParseDataBar(res.FullText)
}

// FormatMagnification renders a magnification the way the instrument
// summary does, e.g. "500x".
func FormatMagnification(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "x"
}
