// Package services defines shared utilities consumed by the pipeline driver,
// the archive rewriter, and the metadata provider.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, filenames, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate per-file
//     failures into consistent file statuses (failed vs skipped).
//
// Use these helpers when wiring new pipeline logic so failure classification
// stays uniform across the run.
package services
