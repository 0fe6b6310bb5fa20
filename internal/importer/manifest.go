// Package importer reconciles externally produced JSON manifests against
// the filesystem and the photo store: it scans for manifest files, decodes
// candidate records, locates the described image files, runs enrichment and
// persists new photos, accumulating per-record outcomes into a batch
// summary. Re-running an import over the same manifest is idempotent.
package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ImportRecord is one candidate photo description decoded from a manifest,
// plus provenance injected by the parser. It lives only for the duration of
// a reconciliation run.
type ImportRecord struct {
	UUID         string          `json:"uuid"`
	Filename     string          `json:"filename"`
	OriginalPath string          `json:"original_path"`
	Width        *int            `json:"width"`
	Height       *int            `json:"height"`
	Description  string          `json:"description"`
	Tags         json.RawMessage `json:"tags"`

	ManifestPath string `json:"-"`
	ManifestDir  string `json:"-"`
}

// recordTags is the nested tag structure of the external tagger's export.
// It is decoded best-effort: a malformed sub-field degrades to its zero
// value instead of failing the record.
type recordTags struct {
	Attributes struct {
		Season   string `json:"season"`
		Category string `json:"category"`
	} `json:"attributes"`
	Keywords []any          `json:"keywords"`
	Meta     map[string]any `json:"meta"`
}

// ExtractTags pulls season/category and the keyword list out of the
// record's nested tag structure.
func (r *ImportRecord) ExtractTags() (season, category string, keywords []string) {
	var tags recordTags
	if len(r.Tags) > 0 {
		_ = json.Unmarshal(r.Tags, &tags) // best effort
	}
	keywords = make([]string, 0, len(tags.Keywords))
	for _, k := range tags.Keywords {
		keywords = append(keywords, fmt.Sprint(k))
	}
	return tags.Attributes.Season, tags.Attributes.Category, keywords
}

// ExtractMeta returns the record's declared capture metadata bag.
func (r *ImportRecord) ExtractMeta() map[string]string {
	var tags recordTags
	if len(r.Tags) > 0 {
		_ = json.Unmarshal(r.Tags, &tags)
	}
	meta := make(map[string]string, len(tags.Meta))
	for k, v := range tags.Meta {
		meta[k] = fmt.Sprint(v)
	}
	return meta
}

// ScanManifests discovers manifest files under path. A single .json file is
// returned as-is; a directory is walked recursively for .json files
// (case-insensitive suffix). A missing path yields an empty list — the
// caller turns that into a user-facing error, not a crash.
func ScanManifests(path string) []string {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}

	if !info.IsDir() {
		if strings.EqualFold(filepath.Ext(path), ".json") {
			return []string{path}
		}
		return nil
	}

	var manifests []string
	filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep walking
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".json") {
			manifests = append(manifests, p)
		}
		return nil
	})
	return manifests
}

// manifestShape distinguishes the two accepted manifest conventions plus
// the degenerate single-record object.
type manifestShape int

const (
	shapeInvalid manifestShape = iota
	shapeList
	shapeObject
)

func sniffShape(data []byte) manifestShape {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return shapeInvalid
	}
	switch trimmed[0] {
	case '[':
		return shapeList
	case '{':
		return shapeObject
	default:
		return shapeInvalid
	}
}

// ParseManifest decodes one manifest file into candidate records. Accepted
// shapes: a bare list of records, an object wrapping a "photos" list, or a
// single bare record object. Decode and I/O failures come back as an error
// naming the file and zero records; parsing never gets past this component.
func ParseManifest(path string) ([]ImportRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var records []ImportRecord
	switch sniffShape(data) {
	case shapeList:
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
	case shapeObject:
		var wrapped struct {
			Photos json.RawMessage `json:"photos"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
		if wrapped.Photos != nil {
			if err := json.Unmarshal(wrapped.Photos, &records); err != nil {
				return nil, fmt.Errorf("parse manifest %s: %w", path, err)
			}
		} else {
			var single ImportRecord
			if err := json.Unmarshal(data, &single); err != nil {
				return nil, fmt.Errorf("parse manifest %s: %w", path, err)
			}
			records = []ImportRecord{single}
		}
	default:
		return nil, fmt.Errorf("parse manifest %s: unsupported top-level shape", path)
	}

	dir := filepath.Dir(path)
	for i := range records {
		records[i].ManifestPath = path
		records[i].ManifestDir = dir
	}
	return records, nil
}
