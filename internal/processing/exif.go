package processing

import (
	"image"
	"os"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// exifTimeLayout is the timestamp format used inside EXIF blocks.
const exifTimeLayout = "2006:01:02 15:04:05"

// captureTimeFields, in order of preference.
var captureTimeFields = []string{"DateTimeOriginal", "DateTime", "DateTimeDigitized"}

// Dimensions returns the pixel width and height of the image at path.
func Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

type exifCollector struct {
	fields map[string]string
}

func (c *exifCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	v, err := tag.StringVal()
	if err != nil {
		// Non-ASCII tag: fall back to the printable representation.
		v = tag.String()
	}
	c.fields[string(name)] = strings.ToValidUTF8(strings.TrimSpace(v), "")
	return nil
}

// ExtractEXIF reads the EXIF block of the image at path into a string map.
// Any decode failure yields an empty map; metadata extraction must never
// block the rest of the pipeline.
func ExtractEXIF(path string) map[string]string {
	fields := map[string]string{}

	f, err := os.Open(path)
	if err != nil {
		return fields
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return fields
	}

	c := &exifCollector{fields: fields}
	if err := x.Walk(c); err != nil {
		return map[string]string{}
	}
	return c.fields
}

// CaptureTime derives a best-effort capture timestamp from an EXIF map,
// trying the usual date fields in order. Returns nil if none parses.
func CaptureTime(exifData map[string]string) *time.Time {
	for _, field := range captureTimeFields {
		raw, ok := exifData[field]
		if !ok {
			continue
		}
		t, err := time.Parse(exifTimeLayout, strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		return &t
	}
	return nil
}
