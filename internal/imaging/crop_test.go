package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/ironsheep/pa-report/internal/errors"
)

func TestCropWindow(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 80)

	tests := []struct {
		name   string
		center image.Point
		size   image.Point
		flipY  bool
		want   image.Rectangle
	}{
		{"centred", image.Pt(50, 40), image.Pt(20, 10), false, image.Rect(40, 35, 60, 45)},
		{"odd size", image.Pt(50, 40), image.Pt(21, 11), false, image.Rect(40, 35, 61, 46)},
		{"left edge", image.Pt(3, 40), image.Pt(20, 10), false, image.Rect(0, 35, 20, 45)},
		{"right edge", image.Pt(98, 40), image.Pt(20, 10), false, image.Rect(80, 35, 100, 45)},
		{"top edge", image.Pt(50, 2), image.Pt(20, 10), false, image.Rect(40, 0, 60, 10)},
		{"bottom edge", image.Pt(50, 79), image.Pt(20, 10), false, image.Rect(40, 70, 60, 80)},
		{"corner", image.Pt(0, 0), image.Pt(20, 10), false, image.Rect(0, 0, 20, 10)},
		{"flipped", image.Pt(50, 10), image.Pt(20, 10), true, image.Rect(40, 65, 60, 75)},
		{"flipped bottom", image.Pt(50, 0), image.Pt(20, 10), true, image.Rect(40, 70, 60, 80)},
		{"whole image", image.Pt(50, 40), image.Pt(100, 80), false, bounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CropWindow(bounds, tt.center, tt.size, tt.flipY)
			if err != nil {
				t.Fatalf("CropWindow failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("window: got %v, want %v", got, tt.want)
			}
			if got.Size() != tt.size {
				t.Errorf("size: got %v, want %v", got.Size(), tt.size)
			}
			if !got.In(bounds) {
				t.Errorf("window %v outside %v", got, bounds)
			}
		})
	}
}

func TestCropWindow_SizePreservedEverywhere(t *testing.T) {
	bounds := image.Rect(0, 0, 64, 48)
	size := image.Pt(17, 9)

	for y := -5; y < 55; y += 3 {
		for x := -5; x < 70; x += 3 {
			for _, flip := range []bool{false, true} {
				r, err := CropWindow(bounds, image.Pt(x, y), size, flip)
				if err != nil {
					t.Fatalf("CropWindow(%d,%d) failed: %v", x, y, err)
				}
				if r.Size() != size || !r.In(bounds) {
					t.Fatalf("CropWindow(%d,%d,flip=%v) = %v", x, y, flip, r)
				}
			}
		}
	}
}

func TestCropWindow_FullFrame(t *testing.T) {
	bounds := image.Rect(0, 0, 2048, 1600)

	for _, flip := range []bool{false, true} {
		got, err := CropWindow(bounds, image.Pt(1024, 800), image.Pt(2048, 1600), flip)
		if err != nil {
			t.Fatalf("CropWindow failed: %v", err)
		}
		if got != bounds {
			t.Errorf("flip=%v: got %v, want %v", flip, got, bounds)
		}
	}
}

func TestCropWindow_Invalid(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 80)

	_, err := CropWindow(bounds, image.Pt(50, 40), image.Pt(101, 10), false)
	if !errors.Is(err, errors.ErrCropTooLarge) {
		t.Errorf("oversized window: got %v, want ErrCropTooLarge", err)
	}

	_, err = CropWindow(bounds, image.Pt(50, 40), image.Pt(0, 10), false)
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("empty window: got %v, want ErrInvalidInput", err)
	}
}

func TestThumbnail_FullImageRescaled(t *testing.T) {
	img := createCoordImage(64, 50)

	thumb, err := Thumbnail(img, image.Pt(32, 25), image.Pt(64, 50), false, DefaultScale)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if thumb.Bounds().Dx() != 192 || thumb.Bounds().Dy() != 150 {
		t.Fatalf("dimensions: got %v, want 192x150", thumb.Bounds().Size())
	}

	// nearest-neighbour: every source pixel becomes a 3x3 block
	for _, p := range []image.Point{{0, 0}, {10, 7}, {63, 49}} {
		for dy := 0; dy < 3; dy++ {
			for dx := 0; dx < 3; dx++ {
				got := thumb.NRGBAAt(p.X*3+dx, p.Y*3+dy)
				want := color.NRGBA{uint8(p.X), uint8(p.Y), 0, 255}
				if got != want {
					t.Errorf("pixel (%d,%d)+(%d,%d): got %v, want %v", p.X, p.Y, dx, dy, got, want)
				}
			}
		}
	}
}

func TestThumbnail_Content(t *testing.T) {
	img := createCoordImage(100, 80)

	thumb, err := Thumbnail(img, image.Pt(50, 10), image.Pt(20, 10), true, 1)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	// flipped window is (40,65)-(60,75)
	if got := thumb.NRGBAAt(0, 0); got != (color.NRGBA{40, 65, 0, 255}) {
		t.Errorf("top-left pixel: got %v", got)
	}
	if got := thumb.NRGBAAt(19, 9); got != (color.NRGBA{59, 74, 0, 255}) {
		t.Errorf("bottom-right pixel: got %v", got)
	}
}

func TestThumbnail_InvalidScale(t *testing.T) {
	img := createCoordImage(10, 10)
	if _, err := Thumbnail(img, image.Pt(5, 5), image.Pt(4, 4), false, 0); err == nil {
		t.Error("Thumbnail should reject scale 0")
	}
}

func TestThumbnailName(t *testing.T) {
	tests := []struct {
		field, ordinal int
		ext            string
		want           string
	}{
		{1, 1, ".png", "00010001.png"},
		{12, 345, ".png", "00120345.png"},
		{9999, 9999, ".jpg", "99999999.jpg"},
	}
	for _, tt := range tests {
		if got := ThumbnailName(tt.field, tt.ordinal, tt.ext); got != tt.want {
			t.Errorf("ThumbnailName(%d, %d): got %s, want %s", tt.field, tt.ordinal, got, tt.want)
		}
	}
}

func TestEncode(t *testing.T) {
	img := createCoordImage(30, 20)
	window := image.Rect(5, 6, 35, 26)

	result, err := Encode(img, window)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if result.MimeType != "image/png" || result.X != 5 || result.Y != 6 {
		t.Errorf("unexpected result: %+v", result)
	}

	data, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 30 || decoded.Bounds().Dy() != 20 {
		t.Errorf("dimensions: got %v, want 30x20", decoded.Bounds().Size())
	}
}
