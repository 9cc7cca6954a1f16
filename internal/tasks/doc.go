// Package tasks persists registered archive folders and their per-file
// progress as one JSON document per task.
//
// The Store keeps every task in memory and serializes all mutations through a
// single mutex. Each mutation updates the file record and the statistics
// counters together and then rewrites the whole task file atomically, so a
// reader of the on-disk record never sees a partial update. Persistence
// failures are logged rather than returned: the in-memory state stays
// authoritative for the rest of the run.
//
// Status changes follow a small state machine. Files move forward from
// pending to success, failed, or skipped; skipped is terminal, and failed
// files only return to pending through Retry. The translation sub-status
// follows the same rule with its own Retry selector.
package tasks
