// internal/models/models.go
package models

import "time"

// Moderation status of a photo.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusDeleted  = "deleted"
)

// Processing (enrichment/tagging) status, distinct from moderation status.
// "manual" means classification came from an import manifest and must not
// be touched by the tagging task.
const (
	ProcessingPending    = "pending"
	ProcessingProcessing = "processing"
	ProcessingCompleted  = "completed"
	ProcessingFailed     = "failed"
	ProcessingManual     = "manual"
)

// Seasons and Categories are the closed classification sets. The AI client
// coerces anything outside them to the first element of each.
var (
	Seasons    = []string{"Spring", "Summer", "Autumn", "Winter"}
	Categories = []string{"Landscape", "Portrait", "Activity", "Documentary"}
)

func ValidSeason(s string) bool {
	for _, v := range Seasons {
		if s == v {
			return true
		}
	}
	return false
}

func ValidCategory(c string) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

type Photo struct {
	ID               string            `db:"id"`
	UploaderID       string            `db:"uploader_id"`
	Filename         string            `db:"filename"`
	OriginalPath     string            `db:"original_path"`
	ProcessedPath    string            `db:"processed_path"`
	ThumbPath        string            `db:"thumb_path"`
	Width            *int              `db:"width"`
	Height           *int              `db:"height"`
	FileSize         *int64            `db:"file_size"`
	MimeType         string            `db:"mime_type"`
	Season           string            `db:"season"`
	Category         string            `db:"category"`
	Description      string            `db:"description"`
	EXIFData         map[string]string `db:"exif_data"`
	Status           string            `db:"status"`
	ProcessingStatus string            `db:"processing_status"`
	CapturedAt       *time.Time        `db:"captured_at"`
	CreatedAt        time.Time         `db:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at"`
}

type Tag struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Category string `db:"category"`
	Color    string `db:"color"`
}

// TagResult is the normalized answer of the vision-language model.
type TagResult struct {
	Season   string   `json:"season"`
	Category string   `json:"category"`
	Objects  []string `json:"objects"`
}

// EnrichmentResult carries whatever the synchronous enrichment step managed
// to derive. Every field is independently optional; an empty field means
// that sub-step failed, not that enrichment as a whole failed.
type EnrichmentResult struct {
	Width      *int
	Height     *int
	ThumbPath  string
	EXIF       map[string]string
	CapturedAt *time.Time
}
