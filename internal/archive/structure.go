package archive

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Reserved entry names.
const (
	MetadataEntry = "metadata.json"
	SummaryEntry  = "ComicInfo.xml"
)

// Layout classifies how payload entries are arranged inside an archive.
type Layout string

const (
	LayoutUnknown Layout = "unknown"
	LayoutFlat    Layout = "flat"
	LayoutNested  Layout = "nested"
)

// Structure is the result of DetectStructure.
type Structure struct {
	Layout Layout `json:"layout"`
	// Folder is the wrapping folder name for nested archives.
	Folder string `json:"folder,omitempty"`
}

// DetectStructure opens path and classifies its layout.
func DetectStructure(path string) (Structure, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return Structure{}, fmt.Errorf("open archive: %w", err)
	}
	defer rc.Close()
	return classify(entryNames(rc.File)), nil
}

func entryNames(files []*zip.File) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}

// classify applies the layout rules: no entries is unknown; a single root
// item that prefixes at least one entry as a folder is nested; anything else
// is flat.
func classify(names []string) Structure {
	if len(names) == 0 {
		return Structure{Layout: LayoutUnknown}
	}
	roots := make(map[string]struct{})
	var root string
	for _, name := range names {
		first, _, _ := strings.Cut(name, "/")
		roots[first] = struct{}{}
		root = first
	}
	if len(roots) == 1 && root != "" {
		prefix := root + "/"
		for _, name := range names {
			if strings.HasPrefix(name, prefix) {
				return Structure{Layout: LayoutNested, Folder: root}
			}
		}
	}
	return Structure{Layout: LayoutFlat}
}
