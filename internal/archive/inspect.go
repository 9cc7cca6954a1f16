package archive

import (
	"fmt"

	"github.com/klauspost/compress/zip"

	"mangameta/internal/fileutil"
)

// Report describes an archive for diagnostics.
type Report struct {
	Path              string    `json:"path"`
	Size              int64     `json:"size"`
	SHA256            string    `json:"sha256"`
	Structure         Structure `json:"structure"`
	Entries           int       `json:"entries"`
	Directories       int       `json:"directories"`
	CompressedBytes   uint64    `json:"compressed_bytes"`
	UncompressedBytes uint64    `json:"uncompressed_bytes"`
	HasMetadata       bool      `json:"has_metadata"`
	HasSummary        bool      `json:"has_summary"`
	Names             []string  `json:"names"`
}

// Inspect reads the central directory of path and summarizes it.
func Inspect(path string) (Report, error) {
	sum, size, err := fileutil.HashFile(path)
	if err != nil {
		return Report{}, err
	}

	rc, err := zip.OpenReader(path)
	if err != nil {
		return Report{}, fmt.Errorf("open archive: %w", err)
	}
	defer rc.Close()

	report := Report{
		Path:   path,
		Size:   size,
		SHA256: sum,
		Names:  entryNames(rc.File),
	}
	report.Structure = classify(report.Names)
	for _, f := range rc.File {
		report.Entries++
		if f.FileInfo().IsDir() {
			report.Directories++
		}
		report.CompressedBytes += f.CompressedSize64
		report.UncompressedBytes += f.UncompressedSize64
		switch f.Name {
		case MetadataEntry:
			report.HasMetadata = true
		case SummaryEntry:
			report.HasSummary = true
		}
	}
	return report, nil
}
