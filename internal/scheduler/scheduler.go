package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mangameta/internal/logging"
	"mangameta/internal/services"
)

// pollSlice bounds how long the dispatcher sleeps without re-checking cancellation.
const pollSlice = 100 * time.Millisecond

// ErrDeferred is returned by a job that ran but left its work for a later
// run. Such jobs count as Deferred rather than Completed or Errored.
var ErrDeferred = errors.New("job deferred")

// JobFunc processes one job. ctx is the run context carrying a correlation id.
type JobFunc func(ctx context.Context, job string) error

// Summary reports what a Run did.
type Summary struct {
	Dispatched int           `json:"dispatched"`
	Completed  int           `json:"completed"`
	Errored    int           `json:"errored"`
	Deferred   int           `json:"deferred"`
	TimedOut   int           `json:"timed_out"`
	Cancelled  int           `json:"cancelled"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Scheduler is a bounded worker pool. It is safe to call Run repeatedly but
// not concurrently on the same Scheduler.
type Scheduler struct {
	workers       int
	dispatchDelay time.Duration
	jobTimeout    time.Duration
	logger        *slog.Logger
}

// New returns a scheduler. workers below one is treated as one; a zero
// jobTimeout disables the wait bound.
func New(workers int, dispatchDelay, jobTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		workers:       workers,
		dispatchDelay: dispatchDelay,
		jobTimeout:    jobTimeout,
		logger:        logging.NewComponentLogger(logger, "scheduler"),
	}
}

// Workers returns the pool size.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Run processes jobs until all are done or ctx is cancelled, then waits for
// in-flight jobs to settle.
func (s *Scheduler) Run(ctx context.Context, jobs []string, fn JobFunc) Summary {
	start := time.Now()
	logger := logging.WithContext(ctx, s.logger)

	var (
		mu      sync.Mutex
		summary Summary
		wg      sync.WaitGroup
	)
	record := func(update func(*Summary)) {
		mu.Lock()
		update(&summary)
		mu.Unlock()
	}

	queue := make(chan string)
	workers := min(s.workers, len(jobs))
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for job := range queue {
				if ctx.Err() != nil {
					record(func(s *Summary) { s.Cancelled++ })
					continue
				}
				record(func(s *Summary) { s.Dispatched++ })
				timedOut, err := s.runJob(ctx, logger, job, fn)
				record(func(s *Summary) {
					if timedOut {
						s.TimedOut++
					}
					switch {
					case errors.Is(err, ErrDeferred):
						s.Deferred++
					case err != nil:
						s.Errored++
					default:
						s.Completed++
					}
				})
			}
		}()
	}

	submitted := 0
dispatch:
	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- job:
			submitted++
		}
		if submitted%s.workers == 0 && i < len(jobs)-1 && s.dispatchDelay > 0 {
			if !sleepContext(ctx, s.dispatchDelay) {
				break
			}
		}
	}
	close(queue)
	wg.Wait()

	summary.Cancelled += len(jobs) - submitted
	summary.Elapsed = time.Since(start)
	if summary.Cancelled > 0 {
		logger.Info("dispatch stopped by cancellation",
			logging.String(logging.FieldEventType, "dispatch_cancelled"),
			logging.Int("dispatched", summary.Dispatched),
			logging.Int("not_started", summary.Cancelled))
	}
	return summary
}

// runJob executes fn and waits for it to settle. The bool reports whether
// the wait exceeded the job timeout before the job returned.
func (s *Scheduler) runJob(ctx context.Context, logger *slog.Logger, job string, fn JobFunc) (bool, error) {
	requestID := uuid.NewString()
	jobCtx := services.WithRequestID(ctx, requestID)

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("job panicked: %v", r)
			}
		}()
		done <- fn(jobCtx, job)
	}()

	if s.jobTimeout <= 0 {
		return false, <-done
	}

	timer := time.NewTimer(s.jobTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return false, err
	case <-timer.C:
		logging.ErrorWithContext(logger, "job exceeded wait bound", "job_timeout",
			logging.String(logging.FieldFile, job),
			logging.String(logging.FieldCorrelationID, requestID),
			logging.Duration("timeout", s.jobTimeout),
			logging.String(logging.FieldErrorHint, "increase processing.job_timeout_seconds or check provider latency"))
		// Never abandon a job mid-rewrite.
		return true, <-done
	}
}

// sleepContext sleeps for d in slices of at most pollSlice. It returns false
// if ctx was cancelled first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	for d > 0 {
		step := min(d, pollSlice)
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		d -= step
	}
	return ctx.Err() == nil
}
