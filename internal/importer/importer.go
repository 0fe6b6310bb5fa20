package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"photo-gallery/internal/models"
)

// maxReportedErrors caps the error list shipped back to the caller; the
// error count still reflects the true total.
const maxReportedErrors = 100

// Store is the persistence surface the reconciler consumes.
type Store interface {
	GetPhoto(ctx context.Context, id string) (*models.Photo, error)
	CreatePhoto(ctx context.Context, p *models.Photo) error
	DeletePhoto(ctx context.Context, id string) error
	GetOrCreateTag(ctx context.Context, name string) (int64, error)
	ReplacePhotoTags(ctx context.Context, photoID string, tagIDs []int64) error
}

// Enricher derives image metadata for a stored original.
type Enricher interface {
	Enrich(originalPath, photoID string) models.EnrichmentResult
}

// BatchOutcome summarizes one reconciliation run.
type BatchOutcome struct {
	TotalCount    int      `json:"total_count"`
	ImportedCount int      `json:"imported_count"`
	SkippedCount  int      `json:"skipped_count"`
	ErrorCount    int      `json:"error_count"`
	Errors        []string `json:"errors"`
	Message       string   `json:"message"`
}

type Importer struct {
	store        Store
	enricher     Enricher
	originalsDir string
	uploaderID   string
	log          *slog.Logger
}

func New(store Store, enricher Enricher, storagePath, uploaderID string, log *slog.Logger) *Importer {
	return &Importer{
		store:        store,
		enricher:     enricher,
		originalsDir: filepath.Join(storagePath, "originals"),
		uploaderID:   uploaderID,
		log:          log,
	}
}

// Run scans jsonPath for manifests and imports every record it can.
// Records are processed strictly one at a time; a failing record is
// recorded and skipped, never aborting the batch. Already-imported
// identifiers are counted as skipped, so re-running the same manifest is
// idempotent and non-destructive.
func (im *Importer) Run(ctx context.Context, jsonPath, imageFolder string) BatchOutcome {
	manifests := ScanManifests(jsonPath)
	if len(manifests) == 0 {
		return BatchOutcome{
			ErrorCount: 1,
			Errors:     []string{fmt.Sprintf("no manifest files found: %s", jsonPath)},
			Message:    "no valid photo records found",
		}
	}

	var records []ImportRecord
	var errs []string
	for _, manifest := range manifests {
		recs, err := ParseManifest(manifest)
		if err != nil {
			im.log.Error("manifest parse failed", "manifest", manifest, "err", err)
			errs = append(errs, err.Error())
			continue
		}
		records = append(records, recs...)
	}

	outcome := BatchOutcome{TotalCount: len(records)}
	for _, rec := range records {
		if rec.UUID == "" || rec.Filename == "" {
			errs = append(errs, fmt.Sprintf("invalid record in %s: missing uuid or filename", rec.ManifestPath))
			outcome.ErrorCount++
			continue
		}

		imported, skipped, err := im.importRecord(ctx, rec, imageFolder)
		switch {
		case err != nil:
			im.log.Error("record import failed", "uuid", rec.UUID, "filename", rec.Filename, "err", err)
			errs = append(errs, fmt.Sprintf("import failed: %s - %v", rec.Filename, err))
			outcome.ErrorCount++
		case skipped:
			outcome.SkippedCount++
		case imported:
			outcome.ImportedCount++
		}
	}

	outcome.Errors = errs
	if len(outcome.Errors) > maxReportedErrors {
		outcome.Errors = outcome.Errors[:maxReportedErrors]
	}
	outcome.Message = fmt.Sprintf("import finished: %d total, %d imported, %d skipped, %d failed",
		outcome.TotalCount, outcome.ImportedCount, outcome.SkippedCount, outcome.ErrorCount)
	im.log.Info("import run finished", "path", jsonPath, "message", outcome.Message)
	return outcome
}

// importRecord handles one record end to end. Partial writes are rolled
// back best-effort on error so a later retry can import the record cleanly.
func (im *Importer) importRecord(ctx context.Context, rec ImportRecord, imageFolder string) (imported, skipped bool, err error) {
	existing, err := im.store.GetPhoto(ctx, rec.UUID)
	if err != nil {
		return false, false, err
	}
	if existing != nil {
		im.log.Debug("photo already imported, skipping", "uuid", rec.UUID, "filename", rec.Filename)
		return false, true, nil
	}

	src := ResolveFile(rec, rec.ManifestDir, imageFolder)
	if src == "" {
		return false, false, fmt.Errorf("image file not found: %s", rec.Filename)
	}

	ext := filepath.Ext(rec.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	if err := os.MkdirAll(im.originalsDir, 0755); err != nil {
		return false, false, err
	}
	dest := filepath.Join(im.originalsDir, rec.UUID+ext)
	if err := copyFile(src, dest); err != nil {
		return false, false, err
	}

	enr := im.enricher.Enrich(dest, rec.UUID)

	season, category, keywords := rec.ExtractTags()
	meta := rec.ExtractMeta()
	// Enrichment-derived metadata wins over manifest-declared metadata.
	for k, v := range enr.EXIF {
		meta[k] = v
	}

	photo := &models.Photo{
		ID:               rec.UUID,
		UploaderID:       im.uploaderID,
		Filename:         rec.Filename,
		OriginalPath:     dest,
		ThumbPath:        enr.ThumbPath,
		Width:            firstInt(rec.Width, enr.Width),
		Height:           firstInt(rec.Height, enr.Height),
		FileSize:         fileSize(dest),
		MimeType:         "image/" + strings.TrimPrefix(ext, "."),
		Season:           season,
		Category:         category,
		Description:      rec.Description,
		EXIFData:         sanitizeMeta(meta),
		CapturedAt:       enr.CapturedAt,
		Status:           models.StatusPending,
		ProcessingStatus: models.ProcessingManual, // classified by the import source
	}
	if err := im.store.CreatePhoto(ctx, photo); err != nil {
		im.removeFiles(dest, enr.ThumbPath)
		return false, false, err
	}

	tagIDs := make([]int64, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		id, err := im.store.GetOrCreateTag(ctx, keyword)
		if err != nil {
			im.rollbackRecord(ctx, rec.UUID, dest, enr.ThumbPath)
			return false, false, err
		}
		tagIDs = append(tagIDs, id)
	}
	if len(tagIDs) > 0 {
		if err := im.store.ReplacePhotoTags(ctx, rec.UUID, tagIDs); err != nil {
			im.rollbackRecord(ctx, rec.UUID, dest, enr.ThumbPath)
			return false, false, err
		}
	}

	im.log.Info("photo imported", "uuid", rec.UUID, "filename", rec.Filename, "tags", len(tagIDs))
	return true, false, nil
}

// rollbackRecord undoes one record's partial writes. Best effort: rollback
// failures are logged and swallowed so the batch keeps going.
func (im *Importer) rollbackRecord(ctx context.Context, photoID string, files ...string) {
	if err := im.store.DeletePhoto(ctx, photoID); err != nil {
		im.log.Error("rollback: delete photo failed", "uuid", photoID, "err", err)
	}
	im.removeFiles(files...)
}

func (im *Importer) removeFiles(files ...string) {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			im.log.Warn("rollback: remove file failed", "file", f, "err", err)
		}
	}
}

// sanitizeMeta guarantees the metadata bag is representable in the
// persisted JSON column: valid UTF-8, no empty keys.
func sanitizeMeta(meta map[string]string) map[string]string {
	clean := make(map[string]string, len(meta))
	for k, v := range meta {
		k = strings.ToValidUTF8(strings.TrimSpace(k), "")
		if k == "" {
			continue
		}
		clean[k] = strings.ToValidUTF8(v, "")
	}
	return clean
}

func firstInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func fileSize(path string) *int64 {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	size := info.Size()
	return &size
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
