package processing_test

import (
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-gallery/internal/processing"
)

func newJPEG(t *testing.T, dir string, width, height int) string {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 120, G: 140, B: 160, A: 255})
	path := filepath.Join(dir, "src.jpg")
	require.NoError(t, imaging.Save(img, path))
	return path
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestDimensions(t *testing.T) {
	src := newJPEG(t, t.TempDir(), 120, 80)

	w, h, err := processing.Dimensions(src)

	require.NoError(t, err)
	assert.Equal(t, 120, w)
	assert.Equal(t, 80, h)
}

func TestDimensions_notAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

	_, _, err := processing.Dimensions(path)

	require.Error(t, err)
}

func TestExtractEXIF_noEXIFBlock(t *testing.T) {
	// imaging writes plain JPEGs without an EXIF segment.
	src := newJPEG(t, t.TempDir(), 10, 10)

	got := processing.ExtractEXIF(src)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtractEXIF_unreadableFile(t *testing.T) {
	got := processing.ExtractEXIF(filepath.Join(t.TempDir(), "nope.jpg"))

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCaptureTime(t *testing.T) {
	tests := []struct {
		name string
		exif map[string]string
		want *time.Time
	}{
		{
			name: "prefers DateTimeOriginal",
			exif: map[string]string{
				"DateTimeOriginal": "2023:07:14 10:30:00",
				"DateTime":         "2024:01:01 00:00:00",
			},
			want: timePtr(2023, 7, 14, 10, 30),
		},
		{
			name: "falls back to DateTime",
			exif: map[string]string{"DateTime": "2022:12:01 08:15:30"},
			want: timePtr(2022, 12, 1, 8, 15),
		},
		{
			name: "skips unparseable field",
			exif: map[string]string{
				"DateTimeOriginal":  "yesterday",
				"DateTimeDigitized": "2021:05:20 18:00:00",
			},
			want: timePtr(2021, 5, 20, 18, 0),
		},
		{
			name: "no date fields",
			exif: map[string]string{"Make": "Fujifilm"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := processing.CaptureTime(tt.exif)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, got.Equal(*tt.want), "got %v want %v", got, tt.want)
		})
	}
}

func timePtr(year int, month time.Month, day, hour, min int) *time.Time {
	t := time.Date(year, month, day, hour, min, 0, 0, time.UTC)
	return &t
}

func TestCreateThumbnail_downscalesWideImage(t *testing.T) {
	dir := t.TempDir()
	src := newJPEG(t, dir, 3000, 2000)
	dst := filepath.Join(dir, "thumbs", "out.jpg")

	w, h, err := processing.CreateThumbnail(src, dst, 400, 85)

	require.NoError(t, err)
	assert.Equal(t, 400, w)
	assert.InDelta(t, 267, h, 1) // 2000 * 400/3000
	assert.FileExists(t, dst)

	gotW, gotH, err := processing.Dimensions(dst)
	require.NoError(t, err)
	assert.Equal(t, w, gotW)
	assert.Equal(t, h, gotH)
}

func TestCreateThumbnail_neverUpscales(t *testing.T) {
	dir := t.TempDir()
	src := newJPEG(t, dir, 300, 200)
	dst := filepath.Join(dir, "out.jpg")

	w, h, err := processing.CreateThumbnail(src, dst, 400, 85)

	require.NoError(t, err)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)
}

func TestCreateThumbnail_badSource(t *testing.T) {
	dir := t.TempDir()
	_, _, err := processing.CreateThumbnail(filepath.Join(dir, "nope.jpg"), filepath.Join(dir, "out.jpg"), 400, 85)

	require.Error(t, err)
}

func TestEnrich(t *testing.T) {
	storageDir := t.TempDir()
	src := newJPEG(t, t.TempDir(), 640, 480)
	enricher := processing.NewEnricher(storageDir, 400, 85, discard())

	res := enricher.Enrich(src, "photo-1")

	require.NotNil(t, res.Width)
	require.NotNil(t, res.Height)
	assert.Equal(t, 640, *res.Width)
	assert.Equal(t, 480, *res.Height)
	assert.Equal(t, filepath.Join(storageDir, "thumbnails", "photo-1_thumb.jpg"), res.ThumbPath)
	assert.FileExists(t, res.ThumbPath)
	assert.NotNil(t, res.EXIF)
}

func TestEnrich_corruptImageStillReturns(t *testing.T) {
	storageDir := t.TempDir()
	src := filepath.Join(t.TempDir(), "corrupt.jpg")
	require.NoError(t, os.WriteFile(src, []byte("definitely not a jpeg"), 0644))
	enricher := processing.NewEnricher(storageDir, 400, 85, discard())

	res := enricher.Enrich(src, "photo-2")

	assert.Nil(t, res.Width)
	assert.Nil(t, res.Height)
	assert.Empty(t, res.ThumbPath)
	assert.Nil(t, res.CapturedAt)
	assert.Empty(t, res.EXIF)
}
