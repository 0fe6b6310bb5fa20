package importer_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-gallery/internal/importer"
	"photo-gallery/internal/models"
)

type fakeStore struct {
	photos     map[string]*models.Photo
	tags       map[string]int64
	tagAssocs  map[string][]int64
	nextTagID  int64
	createErr  error
	getErr     error
	deletedIDs []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		photos:    map[string]*models.Photo{},
		tags:      map[string]int64{},
		tagAssocs: map[string][]int64{},
	}
}

func (s *fakeStore) GetPhoto(_ context.Context, id string) (*models.Photo, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.photos[id], nil
}

func (s *fakeStore) CreatePhoto(_ context.Context, p *models.Photo) error {
	if s.createErr != nil {
		return s.createErr
	}
	cp := *p
	s.photos[p.ID] = &cp
	return nil
}

func (s *fakeStore) DeletePhoto(_ context.Context, id string) error {
	delete(s.photos, id)
	s.deletedIDs = append(s.deletedIDs, id)
	return nil
}

func (s *fakeStore) GetOrCreateTag(_ context.Context, name string) (int64, error) {
	if id, ok := s.tags[name]; ok {
		return id, nil
	}
	s.nextTagID++
	s.tags[name] = s.nextTagID
	return s.nextTagID, nil
}

func (s *fakeStore) ReplacePhotoTags(_ context.Context, photoID string, tagIDs []int64) error {
	s.tagAssocs[photoID] = tagIDs
	return nil
}

type fakeEnricher struct {
	exif  map[string]string
	calls []string
}

func (f *fakeEnricher) Enrich(originalPath, photoID string) models.EnrichmentResult {
	f.calls = append(f.calls, photoID)
	w, h := 800, 600
	return models.EnrichmentResult{Width: &w, Height: &h, EXIF: f.exif}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// newImportFixture lays out a manifest plus n image files next to it and
// returns (manifest dir, storage dir).
func newImportFixture(t *testing.T, n int) (string, string) {
	t.Helper()
	manifestDir := t.TempDir()
	manifest := "["
	for i := 1; i <= n; i++ {
		if i > 1 {
			manifest += ","
		}
		manifest += fmt.Sprintf(`{
			"uuid": "uuid-%d",
			"filename": "photo-%d.jpg",
			"tags": {
				"attributes": {"season": "Winter", "category": "Landscape"},
				"keywords": ["Snow", "Tree"]
			}
		}`, i, i)
		touch(t, filepath.Join(manifestDir, fmt.Sprintf("photo-%d.jpg", i)))
	}
	manifest += "]"
	writeFile(t, filepath.Join(manifestDir, "export.json"), manifest)
	return manifestDir, t.TempDir()
}

func TestRun_importsValidRecords(t *testing.T) {
	manifestDir, storageDir := newImportFixture(t, 2)
	store := newFakeStore()
	enricher := &fakeEnricher{}
	imp := importer.New(store, enricher, storageDir, "admin-1", discard())

	outcome := imp.Run(context.Background(), manifestDir, "")

	assert.Equal(t, 2, outcome.TotalCount)
	assert.Equal(t, 2, outcome.ImportedCount)
	assert.Equal(t, 0, outcome.SkippedCount)
	assert.Equal(t, 0, outcome.ErrorCount)
	assert.Empty(t, outcome.Errors)

	photo := store.photos["uuid-1"]
	require.NotNil(t, photo)
	assert.Equal(t, models.StatusPending, photo.Status)
	assert.Equal(t, models.ProcessingManual, photo.ProcessingStatus)
	assert.Equal(t, "Winter", photo.Season)
	assert.Equal(t, "Landscape", photo.Category)
	assert.Equal(t, "admin-1", photo.UploaderID)
	require.NotNil(t, photo.Width)
	assert.Equal(t, 800, *photo.Width)

	copied := filepath.Join(storageDir, "originals", "uuid-1.jpg")
	assert.Equal(t, copied, photo.OriginalPath)
	assert.FileExists(t, copied)

	// Keywords are case-normalized before tag resolution.
	assert.Contains(t, store.tags, "snow")
	assert.Contains(t, store.tags, "tree")
	assert.Len(t, store.tagAssocs["uuid-1"], 2)

	assert.Equal(t, []string{"uuid-1", "uuid-2"}, enricher.calls)
}

func TestRun_reimportIsIdempotent(t *testing.T) {
	manifestDir, storageDir := newImportFixture(t, 3)
	store := newFakeStore()
	imp := importer.New(store, &fakeEnricher{}, storageDir, "", discard())

	first := imp.Run(context.Background(), manifestDir, "")
	second := imp.Run(context.Background(), manifestDir, "")

	assert.Equal(t, 3, first.ImportedCount)
	assert.Equal(t, 0, first.SkippedCount)
	assert.Equal(t, 0, second.ImportedCount)
	assert.Equal(t, 3, second.SkippedCount)
	assert.Equal(t, 0, second.ErrorCount)
	assert.Len(t, store.photos, 3)
}

func TestRun_partialFailureIsolation(t *testing.T) {
	manifestDir, storageDir := newImportFixture(t, 5)
	// Record 3 references an image that does not exist anywhere.
	require.NoError(t, os.Remove(filepath.Join(manifestDir, "photo-3.jpg")))

	store := newFakeStore()
	imp := importer.New(store, &fakeEnricher{}, storageDir, "", discard())

	outcome := imp.Run(context.Background(), manifestDir, "")

	assert.Equal(t, 5, outcome.TotalCount)
	assert.Equal(t, 4, outcome.ImportedCount)
	assert.Equal(t, 1, outcome.ErrorCount)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "photo-3.jpg")
	assert.Len(t, store.photos, 4)
	assert.Nil(t, store.photos["uuid-3"])
}

func TestRun_recordMissingRequiredFields(t *testing.T) {
	manifestDir := t.TempDir()
	writeFile(t, filepath.Join(manifestDir, "export.json"),
		`[{"filename": "orphan.jpg"}, {"uuid": "no-filename"}]`)

	imp := importer.New(newFakeStore(), &fakeEnricher{}, t.TempDir(), "", discard())

	outcome := imp.Run(context.Background(), manifestDir, "")

	assert.Equal(t, 2, outcome.TotalCount)
	assert.Equal(t, 0, outcome.ImportedCount)
	assert.Equal(t, 2, outcome.ErrorCount)
	assert.Len(t, outcome.Errors, 2)
}

func TestRun_missingPath(t *testing.T) {
	imp := importer.New(newFakeStore(), &fakeEnricher{}, t.TempDir(), "", discard())

	outcome := imp.Run(context.Background(), filepath.Join(t.TempDir(), "nope"), "")

	assert.Equal(t, 0, outcome.TotalCount)
	assert.Equal(t, 0, outcome.ImportedCount)
	assert.Equal(t, 1, outcome.ErrorCount)
	require.Len(t, outcome.Errors, 1)
}

func TestRun_parseErrorSkipsManifestOnly(t *testing.T) {
	manifestDir, storageDir := newImportFixture(t, 1)
	writeFile(t, filepath.Join(manifestDir, "broken.json"), `{"photos": [`)

	store := newFakeStore()
	imp := importer.New(store, &fakeEnricher{}, storageDir, "", discard())

	outcome := imp.Run(context.Background(), manifestDir, "")

	assert.Equal(t, 1, outcome.TotalCount)
	assert.Equal(t, 1, outcome.ImportedCount)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "broken.json")
}

func TestRun_createFailureRollsBackRecord(t *testing.T) {
	manifestDir, storageDir := newImportFixture(t, 1)
	store := newFakeStore()
	store.createErr = errors.New("constraint violation")
	imp := importer.New(store, &fakeEnricher{}, storageDir, "", discard())

	outcome := imp.Run(context.Background(), manifestDir, "")

	assert.Equal(t, 1, outcome.ErrorCount)
	assert.Equal(t, 0, outcome.ImportedCount)
	assert.NoFileExists(t, filepath.Join(storageDir, "originals", "uuid-1.jpg"))
}

func TestRun_enrichmentMetadataWinsOverManifestMeta(t *testing.T) {
	manifestDir := t.TempDir()
	touch(t, filepath.Join(manifestDir, "cam.jpg"))
	writeFile(t, filepath.Join(manifestDir, "export.json"), `[{
		"uuid": "u1",
		"filename": "cam.jpg",
		"tags": {"meta": {"Camera": "FromManifest", "Lens": "50mm"}}
	}]`)

	store := newFakeStore()
	enricher := &fakeEnricher{exif: map[string]string{"Camera": "FromEXIF"}}
	imp := importer.New(store, enricher, t.TempDir(), "", discard())

	outcome := imp.Run(context.Background(), manifestDir, "")

	require.Equal(t, 1, outcome.ImportedCount)
	photo := store.photos["u1"]
	require.NotNil(t, photo)
	assert.Equal(t, "FromEXIF", photo.EXIFData["Camera"])
	assert.Equal(t, "50mm", photo.EXIFData["Lens"])
}

func TestRun_extensionDefaultsToJPG(t *testing.T) {
	manifestDir := t.TempDir()
	touch(t, filepath.Join(manifestDir, "noext"))
	writeFile(t, filepath.Join(manifestDir, "export.json"),
		`[{"uuid": "u1", "filename": "noext"}]`)

	store := newFakeStore()
	storageDir := t.TempDir()
	imp := importer.New(store, &fakeEnricher{}, storageDir, "", discard())

	outcome := imp.Run(context.Background(), manifestDir, "")

	require.Equal(t, 1, outcome.ImportedCount)
	assert.FileExists(t, filepath.Join(storageDir, "originals", "u1.jpg"))
	assert.Equal(t, "image/jpg", store.photos["u1"].MimeType)
}
