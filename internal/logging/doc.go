// Package logging assembles structured slog loggers and formatting helpers used
// across mangameta.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with task IDs, filenames, stages, and correlation IDs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
//
// Loggers are always injected; components derive their own with
// NewComponentLogger instead of reaching for a global.
package logging
