package importer

import (
	"os"
	"path/filepath"
)

// ResolveFile tries an ordered list of candidate locations for the image a
// record describes and returns the first that exists and is a regular file,
// or "" when none matches. The precedence mirrors the export conventions of
// the external tagger this importer consumes; do not reorder it.
func ResolveFile(rec ImportRecord, manifestDir, imageFolder string) string {
	var candidates []string

	if rec.OriginalPath != "" && filepath.IsAbs(rec.OriginalPath) {
		candidates = append(candidates, rec.OriginalPath)
	}

	if rec.Filename != "" {
		candidates = append(candidates, filepath.Join(manifestDir, rec.Filename))
		if imageFolder != "" {
			candidates = append(candidates, filepath.Join(imageFolder, rec.Filename))
		}
		candidates = append(candidates, filepath.Join(manifestDir, "images", rec.Filename))

		parent := filepath.Dir(manifestDir)
		candidates = append(candidates,
			filepath.Join(parent, rec.Filename),
			filepath.Join(parent, "images", rec.Filename))
	}

	if rec.OriginalPath != "" && !filepath.IsAbs(rec.OriginalPath) {
		candidates = append(candidates, filepath.Join(manifestDir, rec.OriginalPath))
		if imageFolder != "" {
			candidates = append(candidates, filepath.Join(imageFolder, rec.OriginalPath))
		}
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.Mode().IsRegular() {
			return candidate
		}
	}
	return ""
}
