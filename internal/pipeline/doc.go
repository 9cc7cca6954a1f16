// Package pipeline drives a task through metadata enrichment.
//
// A run selects files from the task store according to its Mode, then hands
// them to the scheduler. Each file goes through these stages:
//
//  1. Extract the gallery id from the filename (mismatch: skipped).
//  2. Fetch metadata from the provider (not found or transient: failed;
//     cancellation during the fetch leaves the file pending).
//  3. Flatten a nested archive.
//  4. Inject metadata.json and, for CBZ output, ComicInfo.xml.
//  5. Optionally promote .zip to .cbz, renaming the task record with it.
//  6. Optionally translate tags in both reserved entries.
//
// Cancellation is checked before stage 3. From there on the file is finished
// with a detached context so an archive is never left half rewritten.
//
// Translation is all or nothing: if any tag lacks a translation neither entry
// is rewritten, the translation sub-state becomes failed and the file status
// becomes failed with error kind "translation". The injected metadata stays.
package pipeline
