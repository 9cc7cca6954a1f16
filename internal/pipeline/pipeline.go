package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mangameta/internal/archive"
	"mangameta/internal/config"
	"mangameta/internal/entrycache"
	"mangameta/internal/logging"
	"mangameta/internal/metadata"
	"mangameta/internal/preflight"
	"mangameta/internal/scheduler"
	"mangameta/internal/services"
	"mangameta/internal/tasks"
	"mangameta/internal/throttle"
)

// Translator maps metadata tags to their translated form.
type Translator interface {
	Translate(tag string) (string, bool)
	IsTranslated(tag string) bool
}

// Mode selects which files a run processes.
type Mode string

const (
	// ModePending processes every pending file.
	ModePending Mode = "pending"
	// ModeRetry resets failed files to pending and processes them.
	ModeRetry Mode = "retry"
	// ModeTranslate translates files whose translation is still pending.
	ModeTranslate Mode = "translate"
	// ModeRetryTranslation resets failed translations and translates them again.
	ModeRetryTranslation Mode = "retry-translation"
)

func (m Mode) translationOnly() bool {
	return m == ModeTranslate || m == ModeRetryTranslation
}

// RunOptions configures one Run.
type RunOptions struct {
	Mode Mode
}

// Report summarizes a Run.
type Report struct {
	TaskID       string            `json:"task_id"`
	RunID        string            `json:"run_id"`
	Mode         Mode              `json:"mode"`
	DryRun       bool              `json:"dry_run"`
	Files        int               `json:"files"`
	Summary      scheduler.Summary `json:"summary"`
	Statistics   tasks.Statistics  `json:"statistics"`
	Untranslated int               `json:"untranslated_tags"`
	Cache        entrycache.Stats  `json:"cache"`
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithTranslator enables the translation phase.
func WithTranslator(t Translator) Option {
	return func(p *Pipeline) {
		p.translator = t
	}
}

// WithUntranslatedSink registers a function called at the end of every run
// to persist tags that had no translation. It returns the number saved.
func WithUntranslatedSink(fn func() (int, error)) Option {
	return func(p *Pipeline) {
		p.saveUntranslated = fn
	}
}

// Pipeline processes task files.
type Pipeline struct {
	cfg      *config.Config
	store    *tasks.Store
	provider metadata.Provider
	rewriter *archive.Rewriter
	cache    *entrycache.Cache
	logger   *slog.Logger

	translator       Translator
	saveUntranslated func() (int, error)
}

// New builds a pipeline from configuration.
func New(cfg *config.Config, store *tasks.Store, provider metadata.Provider, logger *slog.Logger, opts ...Option) *Pipeline {
	logger = logging.NewComponentLogger(logger, "pipeline")
	p := &Pipeline{
		cfg:      cfg,
		store:    store,
		provider: provider,
		rewriter: archive.NewRewriter(throttle.NewMB(cfg.Processing.DiskLimitMB), logger),
		cache:    entrycache.New(cfg.Processing.CacheSize),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes the files of taskID selected by opts.Mode.
func (p *Pipeline) Run(ctx context.Context, taskID string, opts RunOptions) (Report, error) {
	if opts.Mode == "" {
		opts.Mode = ModePending
	}
	report := Report{
		TaskID: taskID,
		RunID:  uuid.NewString(),
		Mode:   opts.Mode,
		DryRun: p.cfg.Processing.DryRun,
	}

	task, err := p.store.Get(taskID)
	if err != nil {
		return report, err
	}
	if opts.Mode.translationOnly() && p.translator == nil {
		return report, services.Wrap(services.ErrConfiguration, "run", "translate", "translation dictionary not configured", nil)
	}

	unlock, err := p.store.Lock(taskID)
	if err != nil {
		return report, err
	}
	defer unlock()

	if err := preflight.Failed(preflight.RunAll(p.cfg, task.FolderPath)); err != nil {
		return report, services.Wrap(services.ErrValidation, "run", "preflight", "", err)
	}

	ctx = services.WithTaskID(ctx, taskID)
	logger := logging.WithContext(ctx, p.logger).With(logging.String(logging.FieldRunID, report.RunID))

	files, err := p.selectFiles(taskID, opts.Mode)
	if err != nil {
		return report, err
	}
	report.Files = len(files)

	logger.Info("run starting",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("mode", string(opts.Mode)),
		logging.Int("files", len(files)),
		logging.Int("workers", p.cfg.Processing.Workers),
		logging.Bool("dry_run", report.DryRun),
		logging.Bool("batch_mode", p.cfg.Processing.BatchMode))

	job := p.jobFunc(task, opts.Mode)
	sched := scheduler.New(p.cfg.Processing.Workers, p.cfg.DispatchDelay(), p.cfg.JobTimeout(), logger)
	if p.cfg.Processing.BatchMode {
		report.Summary, report.Cache = p.runBatches(ctx, logger, sched, task, files, job)
	} else {
		report.Summary = sched.Run(ctx, files, job)
		report.Cache = p.cache.Stats()
		p.cache.Clear()
	}

	if p.saveUntranslated != nil && !report.DryRun {
		n, err := p.saveUntranslated()
		if err != nil {
			logging.WarnWithContext(logger, "failed to save untranslated tags", "untranslated_save_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check translation.untranslated_path"),
				logging.String(logging.FieldImpact, "missing dictionary entries are not reported"))
		}
		report.Untranslated = n
	}

	if final, err := p.store.Get(taskID); err == nil {
		report.Statistics = final.Statistics
	}

	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("dispatched", report.Summary.Dispatched),
		logging.Int("errored", report.Summary.Errored),
		logging.Int("not_started", report.Summary.Cancelled),
		logging.Duration("elapsed", report.Summary.Elapsed))

	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}

func (p *Pipeline) jobFunc(task tasks.Task, mode Mode) scheduler.JobFunc {
	if mode.translationOnly() {
		return func(ctx context.Context, filename string) error {
			return p.TranslateFile(ctx, task, filename).jobErr()
		}
	}
	return func(ctx context.Context, filename string) error {
		return p.ProcessFile(ctx, task, filename).jobErr()
	}
}

// selectFiles resolves the run's file list. Retry modes mutate the store
// except in dry runs, where the failed files are only listed.
func (p *Pipeline) selectFiles(taskID string, mode Mode) ([]string, error) {
	dryRun := p.cfg.Processing.DryRun
	switch mode {
	case ModePending:
		return p.store.PendingFiles(taskID)
	case ModeRetry:
		if dryRun {
			return p.store.FailedFiles(taskID)
		}
		return p.store.Retry(taskID, tasks.RetryFailed)
	case ModeTranslate:
		names, err := p.store.UntranslatedFiles(taskID)
		if err != nil {
			return nil, err
		}
		return p.translatable(taskID, names)
	case ModeRetryTranslation:
		var (
			names []string
			err   error
		)
		if dryRun {
			names, err = p.store.TranslationFailedFiles(taskID)
		} else {
			names, err = p.store.Retry(taskID, tasks.RetryTranslationFailed)
		}
		if err != nil {
			return nil, err
		}
		return p.translatable(taskID, names)
	default:
		return nil, fmt.Errorf("unknown run mode %q", mode)
	}
}

// translatable keeps files whose metadata was injected: successes, and
// failures caused only by translation.
func (p *Pipeline) translatable(taskID string, names []string) ([]string, error) {
	task, err := p.store.Get(taskID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		rec := task.Files[name]
		if rec.Status == tasks.StatusSuccess ||
			(rec.Status == tasks.StatusFailed && rec.ErrorKind == tasks.KindTranslation) {
			out = append(out, name)
		}
	}
	return out, nil
}

// isCancellation reports whether err stems from the run being stopped.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ctx.Err()))
}

func elapsedSince(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
