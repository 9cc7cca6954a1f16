// Package preflight provides readiness checks for the filesystem paths and
// the metadata endpoint that mangameta depends on.
//
// These checks run in two contexts:
//   - The pipeline calls RunAll before dispatching any file of a task. If a
//     check fails the run is refused, so no archive is touched on a doomed run.
//   - The CLI "config validate --online" command calls CheckProvider to show
//     whether the metadata endpoint answers.
//
// Each optional check is gated by its config value; unset thresholds are skipped.
package preflight
