package processing

import (
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

const (
	DefaultThumbWidth   = 400
	DefaultThumbQuality = 85
)

// CreateThumbnail writes a JPEG preview of src to dst, scaled down to at
// most maxWidth pixels wide with aspect ratio preserved. Images narrower
// than maxWidth are written at their original size, never upscaled.
// Parent directories for dst are created as needed.
func CreateThumbnail(src, dst string, maxWidth, quality int) (int, int, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultThumbWidth
	}
	if quality <= 0 {
		quality = DefaultThumbQuality
	}

	img, err := imaging.Open(src)
	if err != nil {
		return 0, 0, err
	}

	if img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, 0, err
	}
	if err := imaging.Save(img, dst, imaging.JPEGQuality(quality)); err != nil {
		return 0, 0, err
	}

	return img.Bounds().Dx(), img.Bounds().Dy(), nil
}
