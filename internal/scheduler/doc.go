// Package scheduler runs a list of jobs on a fixed pool of workers with
// cooperative cancellation.
//
// The dispatcher hands jobs to workers over an unbuffered channel, so a job
// is only considered dispatched once a worker has accepted it. After every
// round of submissions equal to the pool size the dispatcher pauses for the
// configured delay, which keeps the request rate against remote services
// predictable.
//
// Cancellation is observed through the run context. Once it is done no new
// job starts; jobs already running are allowed to finish. Jobs receive the
// run context and must detach from it (context.WithoutCancel) before starting
// work that cannot be interrupted safely.
package scheduler
