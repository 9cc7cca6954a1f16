package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"mangameta/internal/archive"
	"mangameta/internal/entrycache"
	"mangameta/internal/logging"
	"mangameta/internal/scheduler"
	"mangameta/internal/tasks"
)

// runBatches processes files in chunks of batch_size. Reserved entries of
// each chunk are preloaded into the cache and the cache is cleared after the
// chunk, bounding memory to one batch.
func (p *Pipeline) runBatches(ctx context.Context, logger *slog.Logger, sched *scheduler.Scheduler, task tasks.Task, files []string, job scheduler.JobFunc) (scheduler.Summary, entrycache.Stats) {
	var (
		total scheduler.Summary
		stats entrycache.Stats
	)
	batches := chunk(files, p.cfg.Processing.BatchSize)
	for i, batch := range batches {
		if ctx.Err() != nil {
			total.Cancelled += remaining(batches[i:])
			break
		}
		logger.Info("batch starting",
			logging.String(logging.FieldEventType, "batch_start"),
			logging.Int("batch", i+1),
			logging.Int("batches", len(batches)),
			logging.Int("files", len(batch)))

		p.preload(ctx, logger, task.FolderPath, batch, sched.Workers())
		summary := sched.Run(ctx, batch, job)
		stats = addStats(stats, p.cache.Stats())
		p.cache.Clear()
		total = addSummary(total, summary)
	}
	return total, stats
}

// preload reads the reserved entries of every file in batch into the cache.
// Failures are expected for archives that have no metadata yet and are
// ignored.
func (p *Pipeline) preload(ctx context.Context, logger *slog.Logger, folder string, batch []string, workers int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, name := range batch {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			path := filepath.Join(folder, name)
			entries, err := p.rewriter.ReadEntries(path, archive.MetadataEntry, archive.SummaryEntry)
			if err != nil {
				logger.Debug("preload skipped",
					logging.String(logging.FieldFile, name),
					logging.Error(err))
				return nil
			}
			for entry, data := range entries {
				p.cache.Put(path, entry, data)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func chunk(files []string, size int) [][]string {
	if size < 1 {
		size = len(files)
	}
	var out [][]string
	for start := 0; start < len(files); start += size {
		out = append(out, files[start:min(start+size, len(files))])
	}
	return out
}

func remaining(batches [][]string) int {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	return n
}

func addStats(a, b entrycache.Stats) entrycache.Stats {
	return entrycache.Stats{
		Entries:   max(a.Entries, b.Entries),
		Capacity:  b.Capacity,
		Hits:      a.Hits + b.Hits,
		Misses:    a.Misses + b.Misses,
		Evictions: a.Evictions + b.Evictions,
	}
}

func addSummary(a, b scheduler.Summary) scheduler.Summary {
	return scheduler.Summary{
		Dispatched: a.Dispatched + b.Dispatched,
		Completed:  a.Completed + b.Completed,
		Errored:    a.Errored + b.Errored,
		Deferred:   a.Deferred + b.Deferred,
		TimedOut:   a.TimedOut + b.TimedOut,
		Cancelled:  a.Cancelled + b.Cancelled,
		Elapsed:    a.Elapsed + b.Elapsed,
	}
}
