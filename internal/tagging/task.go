// Package tagging runs the asynchronous AI classification task. A task is
// handed off through kafka by whatever request triggered it and walks a
// photo's processing_status through pending -> processing -> completed or
// failed. "manual" photos are never touched: their classification came
// from an import manifest.
package tagging

import (
	"context"
	"log/slog"
	"strings"

	"photo-gallery/internal/models"
)

// Store is the persistence surface the task consumes.
type Store interface {
	GetPhoto(ctx context.Context, id string) (*models.Photo, error)
	UpdatePhoto(ctx context.Context, p *models.Photo) error
	UpdateProcessingStatus(ctx context.Context, id, status string) error
	GetOrCreateTag(ctx context.Context, name string) (int64, error)
	ReplacePhotoTags(ctx context.Context, photoID string, tagIDs []int64) error
}

// Analyzer is the AI tagging client surface.
type Analyzer interface {
	Analyze(ctx context.Context, imagePath string) (*models.TagResult, error)
}

type Task struct {
	store Store
	ai    Analyzer
	log   *slog.Logger
}

func NewTask(store Store, ai Analyzer, log *slog.Logger) *Task {
	return &Task{store: store, ai: ai, log: log}
}

// Process runs the tagging state machine for one photo. It runs detached
// from the request that triggered it, so it never propagates a failure:
// anything going wrong mid-flight ends in a best-effort write of
// processing_status=failed.
func (t *Task) Process(ctx context.Context, photoID string) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("tagging task panicked", "photo", photoID, "panic", r)
			t.markFailed(ctx, photoID)
		}
	}()

	photo, err := t.store.GetPhoto(ctx, photoID)
	if err != nil {
		t.log.Error("tagging task: load photo failed", "photo", photoID, "err", err)
		return
	}
	if photo == nil {
		// The photo may have been deleted between enqueue and pickup.
		return
	}
	if photo.ProcessingStatus == models.ProcessingManual {
		return
	}

	if err := t.store.UpdateProcessingStatus(ctx, photoID, models.ProcessingProcessing); err != nil {
		t.log.Error("tagging task: mark processing failed", "photo", photoID, "err", err)
		t.markFailed(ctx, photoID)
		return
	}

	result, err := t.ai.Analyze(ctx, photo.OriginalPath)
	if err != nil {
		t.log.Error("ai analysis failed", "photo", photoID, "err", err)
	}
	if result == nil {
		t.markFailed(ctx, photoID)
		return
	}

	// Never overwrite classification a user or an import supplied.
	photo.ProcessingStatus = models.ProcessingProcessing
	if photo.Season == "" {
		photo.Season = result.Season
	}
	if photo.Category == "" {
		photo.Category = result.Category
	}
	if err := t.store.UpdatePhoto(ctx, photo); err != nil {
		t.log.Error("tagging task: update photo failed", "photo", photoID, "err", err)
		t.markFailed(ctx, photoID)
		return
	}

	tagIDs := make([]int64, 0, len(result.Objects))
	for _, keyword := range result.Objects {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		id, err := t.store.GetOrCreateTag(ctx, keyword)
		if err != nil {
			t.log.Error("tagging task: resolve tag failed", "photo", photoID, "tag", keyword, "err", err)
			t.markFailed(ctx, photoID)
			return
		}
		tagIDs = append(tagIDs, id)
	}
	if err := t.store.ReplacePhotoTags(ctx, photoID, tagIDs); err != nil {
		t.log.Error("tagging task: replace tags failed", "photo", photoID, "err", err)
		t.markFailed(ctx, photoID)
		return
	}

	if err := t.store.UpdateProcessingStatus(ctx, photoID, models.ProcessingCompleted); err != nil {
		t.log.Error("tagging task: mark completed failed", "photo", photoID, "err", err)
		t.markFailed(ctx, photoID)
		return
	}
	t.log.Info("ai tagging completed", "photo", photoID,
		"season", photo.Season, "category", photo.Category, "tags", len(tagIDs))
}

// markFailed swallows its own error: there is nothing left to do when even
// the failure write fails.
func (t *Task) markFailed(ctx context.Context, photoID string) {
	if err := t.store.UpdateProcessingStatus(ctx, photoID, models.ProcessingFailed); err != nil {
		t.log.Error("tagging task: mark failed failed", "photo", photoID, "err", err)
	}
}
