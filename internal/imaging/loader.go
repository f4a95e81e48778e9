package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder

	"github.com/ironsheep/pa-report/internal/errors"
)

// ImageCache provides thread-safe caching of decoded field images keyed by
// path. A field image is read once even though every particle on the field
// is cropped from it.
//
// Cached images remain in memory until Evict or Clear is called. Thumbnail
// generation evicts each field once its particles are done.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]entry
}

type entry struct {
	img    image.Image
	format string
}

// NewImageCache creates an empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]entry),
	}
}

// Load retrieves an image from the cache or decodes it from disk. PNG, JPEG,
// GIF, BMP and TIFF are supported. A missing file is reported as
// errors.NotFoundError.
func (c *ImageCache) Load(path string) (image.Image, error) {
	e, err := c.load(path)
	if err != nil {
		return nil, err
	}
	return e.img, nil
}

func (c *ImageCache) load(path string) (entry, error) {
	c.mu.RLock()
	if e, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return e, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return entry{}, errors.NewNotFoundError("image", path)
		}
		return entry{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return entry{}, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	e := entry{img: img, format: format}
	c.mu.Lock()
	c.images[path] = e
	c.mu.Unlock()

	return e, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]entry)
	c.mu.Unlock()
}

// Evict removes one image from the cache. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// FieldImagePath returns the path of a field image, e.g. fields/fld0007.png.
func FieldImagePath(dir string, field int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("fld%04d%s", field, ext))
}

// ImageInfo contains metadata about a field image.
type ImageInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	// Format is the name the decoder registered, e.g. "png" or "tiff".
	Format string `json:"format"`

	// ColorDepth is "8-bit" or "16-bit". SEM detectors often export 16-bit
	// grayscale.
	ColorDepth string `json:"color_depth"`

	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and describes it.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	e, err := cache.load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	colorDepth := "8-bit"
	switch e.img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		colorDepth = "16-bit"
	}

	bounds := e.img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        e.format,
		ColorDepth:    colorDepth,
		FileSizeBytes: stat.Size(),
	}, nil
}
