package ocr

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/pa-report/internal/errors"
)

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// createFieldWithDataBar renders a field image with a white data bar of
// the given height and text, scaled up for legibility.
func createFieldWithDataBar(t *testing.T, text string, band, scale int) string {
	t.Helper()

	w, h := (len(text)*7+40)*scale, (100+band)*scale
	small := image.NewRGBA(image.Rect(0, 0, w/scale, h/scale))
	draw.Draw(small, small.Bounds(), image.NewUniform(color.Gray{60}), image.Point{}, draw.Src)
	draw.Draw(small, image.Rect(0, 100, w/scale, h/scale), image.White, image.Point{}, draw.Src)
	drawText(small, 20, 100+band/2+4, text, color.Black)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, small.At(x/scale, y/scale))
		}
	}

	path := filepath.Join(t.TempDir(), "fld0001.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func skipWithoutTesseract(t *testing.T, err error) {
	t.Helper()
	if err != nil && (strings.Contains(strings.ToLower(err.Error()), "tesseract") ||
		strings.Contains(err.Error(), "language")) {
		t.Skip("Tesseract not available")
	}
}

func TestParseDataBar(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		mag     float64
		kv      float64
		wantErr bool
	}{
		{"labelled", "Mag: 500x  kV: 20.0  WD: 10.1 mm", 500, 20, false},
		{"suffixed", "HV 15 kV   1000x   50 um", 1000, 15, false},
		{"kilo magnification", "Mag = 1.5 kX   25kV", 1500, 25, false},
		{"decimal comma", "20,0 kV  250 ×", 250, 20, false},
		{"voltage label", "Acc. Voltage: 30  Magnification 2000", 2000, 30, false},
		{"voltage only", "EHT 10 kV", 0, 10, false},
		{"magnification only", "Mag 800", 800, 0, false},
		{"frame size", "HV 20.0 kV WD 10.1 mm 2048x1600", 0, 20, false},
		{"frame size before magnification", "2048 x 1600  500x  15 kV", 500, 15, false},
		{"nothing", "Spot 3.0  WD 10 mm", 0, 0, true},
		{"empty", "", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar, err := ParseDataBar(tt.text)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrParse) {
					t.Errorf("got %v, want ErrParse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDataBar failed: %v", err)
			}
			if bar.Magnification != tt.mag {
				t.Errorf("Magnification: got %v, want %v", bar.Magnification, tt.mag)
			}
			if bar.VoltageKV != tt.kv {
				t.Errorf("VoltageKV: got %v, want %v", bar.VoltageKV, tt.kv)
			}
		})
	}
}

func TestBand(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 150))

	band, err := Band(img, 50)
	if err != nil {
		t.Fatalf("Band failed: %v", err)
	}
	if band.Bounds().Dx() != 400 || band.Bounds().Dy() != 100 {
		t.Errorf("band size: got %v, want 400x100", band.Bounds().Size())
	}

	for _, h := range []int{0, -1, 151} {
		if _, err := Band(img, h); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Band(%d): got %v, want ErrInvalidInput", h, err)
		}
	}
}

func TestFormatMagnification(t *testing.T) {
	tests := map[float64]string{500: "500x", 1500: "1500x", 2.5: "2.5x"}
	for v, want := range tests {
		if got := FormatMagnification(v); got != want {
			t.Errorf("FormatMagnification(%v): got %s, want %s", v, got, want)
		}
	}
}

func TestReadDataBar_NonExistentFile(t *testing.T) {
	if _, err := ReadDataBar("/nonexistent/fld0001.png", DefaultBandHeight, Options{}); err == nil {
		t.Error("ReadDataBar should fail for non-existent file")
	}
}

func TestReadDataBar_RenderedText(t *testing.T) {
	if !Info().Available {
		t.Skip("Tesseract not available")
	}
	path := createFieldWithDataBar(t, "Mag 500x  HV 20 kV", 30, 4)

	bar, err := ReadDataBar(path, 30*4, Options{})
	skipWithoutTesseract(t, err)
	if err != nil {
		t.Fatalf("ReadDataBar failed: %v", err)
	}
	if bar.Magnification != 500 {
		t.Errorf("Magnification: got %v (text %q)", bar.Magnification, bar.Text)
	}
	if bar.VoltageKV != 20 {
		t.Errorf("VoltageKV: got %v (text %q)", bar.VoltageKV, bar.Text)
	}
}

func TestExtractText_InvalidLanguage(t *testing.T) {
	if !Info().Available {
		t.Skip("Tesseract not available")
	}
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	if _, err := ExtractText(img, Options{Language: "invalid_lang_xyz"}); err == nil {
		t.Error("ExtractText should fail for an unknown language")
	}
}
