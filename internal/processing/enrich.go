package processing

import (
	"log/slog"
	"path/filepath"

	"photo-gallery/internal/models"
)

// Enricher derives dimensions, EXIF metadata, a capture timestamp and a
// thumbnail for a stored original. It is deliberately tolerant: a corrupt
// or unusual image must not prevent the photo record from being created,
// so Enrich reports partial results instead of failing.
type Enricher struct {
	thumbDir string
	maxWidth int
	quality  int
	log      *slog.Logger
}

func NewEnricher(storagePath string, maxWidth, quality int, log *slog.Logger) *Enricher {
	return &Enricher{
		thumbDir: filepath.Join(storagePath, "thumbnails"),
		maxWidth: maxWidth,
		quality:  quality,
		log:      log,
	}
}

// Enrich processes the original at originalPath, naming derived files after
// photoID. Whatever sub-step fails is logged and left empty in the result.
func (e *Enricher) Enrich(originalPath, photoID string) models.EnrichmentResult {
	res := models.EnrichmentResult{EXIF: map[string]string{}}

	if w, h, err := Dimensions(originalPath); err != nil {
		e.log.Warn("read dimensions failed", "photo", photoID, "err", err)
	} else {
		res.Width = &w
		res.Height = &h
	}

	res.EXIF = ExtractEXIF(originalPath)
	res.CapturedAt = CaptureTime(res.EXIF)

	thumbPath := filepath.Join(e.thumbDir, photoID+"_thumb.jpg")
	if _, _, err := CreateThumbnail(originalPath, thumbPath, e.maxWidth, e.quality); err != nil {
		e.log.Warn("thumbnail generation failed", "photo", photoID, "err", err)
	} else {
		res.ThumbPath = thumbPath
	}

	return res
}
