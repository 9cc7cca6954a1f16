package preflight

import (
	"errors"
	"fmt"
	"strings"

	"mangameta/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks needed before processing folder.
// Checks are only run when the corresponding feature is enabled.
func RunAll(cfg *config.Config, folder string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Task folder (always checked)
	results = append(results, CheckDirectoryAccess("Task folder", folder))

	if cfg.Paths.DataDir != "" {
		results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	}

	if cfg.Processing.MinFreeSpaceMB > 0 && !cfg.Processing.DryRun {
		minBytes := uint64(cfg.Processing.MinFreeSpaceMB) * 1024 * 1024
		results = append(results, CheckFreeSpace("Free space", folder, minBytes))
	}

	if cfg.Translation.Enabled {
		results = append(results, CheckReadableFile("Translation dictionary", cfg.Translation.DictionaryPath))
		if cfg.Translation.UntranslatedPath != "" {
			results = append(results, CheckParentWritable("Untranslated tag report", cfg.Translation.UntranslatedPath))
		}
	}

	return results
}

// Failed joins the failing results into one error, or returns nil.
func Failed(results []Result) error {
	var errs []error
	for _, r := range results {
		if !r.Passed {
			errs = append(errs, fmt.Errorf("%s: %s", r.Name, strings.TrimSpace(r.Detail)))
		}
	}
	return errors.Join(errs...)
}
