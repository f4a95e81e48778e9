package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/pa-report/internal/errors"
)

// DefaultScale is the thumbnail magnification.
const DefaultScale = 3

// CropResult contains an encoded thumbnail.
type CropResult struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropWindow returns the window of the given size centred on center. When
// flipY is set, center.Y is measured from the bottom of the image (EDAX
// convention) and is mirrored first.
//
// A window that crosses an image edge is shifted back inside so that its
// size is preserved. A window larger than the image returns
// errors.ErrCropTooLarge.
func CropWindow(bounds image.Rectangle, center, size image.Point, flipY bool) (image.Rectangle, error) {
	if size.X <= 0 || size.Y <= 0 {
		return image.Rectangle{}, errors.NewValidationError("size", size.String(), "must be positive")
	}
	if size.X > bounds.Dx() || size.Y > bounds.Dy() {
		return image.Rectangle{}, fmt.Errorf("%w: window %dx%d, image %dx%d",
			errors.ErrCropTooLarge, size.X, size.Y, bounds.Dx(), bounds.Dy())
	}

	cx, cy := center.X, center.Y
	if flipY {
		cy = bounds.Min.Y + bounds.Dy() - (cy - bounds.Min.Y)
	}

	r := image.Rect(cx-size.X/2, cy-size.Y/2, cx-size.X/2+size.X, cy-size.Y/2+size.Y)

	switch {
	case r.Min.X < bounds.Min.X:
		r = r.Add(image.Pt(bounds.Min.X-r.Min.X, 0))
	case r.Max.X > bounds.Max.X:
		r = r.Sub(image.Pt(r.Max.X-bounds.Max.X, 0))
	}
	switch {
	case r.Min.Y < bounds.Min.Y:
		r = r.Add(image.Pt(0, bounds.Min.Y-r.Min.Y))
	case r.Max.Y > bounds.Max.Y:
		r = r.Sub(image.Pt(0, r.Max.Y-bounds.Max.Y))
	}
	return r, nil
}

// Thumbnail crops the window around center and magnifies it by scale with
// nearest-neighbour sampling, so pixels stay sharp.
func Thumbnail(img image.Image, center, size image.Point, flipY bool, scale int) (*image.NRGBA, error) {
	r, err := CropWindow(img.Bounds(), center, size, flipY)
	if err != nil {
		return nil, err
	}
	if scale < 1 {
		return nil, errors.NewValidationError("scale", scale, "must be at least 1")
	}

	cropped := imaging.Crop(img, r)
	if scale == 1 {
		return cropped, nil
	}
	return imaging.Resize(cropped, r.Dx()*scale, r.Dy()*scale, imaging.NearestNeighbor), nil
}

// ThumbnailName is the file name of the thumbnail of the ordinal-th particle
// (1-based) of a field.
func ThumbnailName(field, ordinal int, ext string) string {
	return fmt.Sprintf("%04d%04d%s", field, ordinal, ext)
}

// Encode returns img as a base64 PNG.
func Encode(img image.Image, window image.Rectangle) (*CropResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return &CropResult{
		X:           window.Min.X,
		Y:           window.Min.Y,
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
