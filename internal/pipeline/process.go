package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"mangameta/internal/archive"
	"mangameta/internal/comicinfo"
	"mangameta/internal/logging"
	"mangameta/internal/metadata"
	"mangameta/internal/scheduler"
	"mangameta/internal/services"
	"mangameta/internal/tasks"
)

// Outcome describes what happened to one file.
type Outcome struct {
	// File is the final filename; it differs from the input after promotion.
	File              string
	Status            tasks.Status
	Kind              string
	TranslationStatus tasks.Status
	// Err is the failure that determined Status, if any.
	Err error
	// Deferred is true when the file was left pending because the run was
	// cancelled, or the run is a dry run.
	Deferred bool
}

// jobErr maps the outcome onto the scheduler's accounting.
func (o Outcome) jobErr() error {
	if o.Deferred {
		return scheduler.ErrDeferred
	}
	return o.Err
}

// ProcessFile enriches one archive of task and records the result.
func (p *Pipeline) ProcessFile(ctx context.Context, task tasks.Task, filename string) Outcome {
	start := time.Now()
	ctx = services.WithFile(services.WithTaskID(ctx, task.ID), filename)
	logger := logging.WithContext(ctx, p.logger)
	out := Outcome{File: filename}

	id, err := metadata.ExtractID(filename)
	if err != nil {
		return p.finish(logger, task.ID, out, err, start)
	}

	fetchCtx := services.WithStage(ctx, "fetch")
	meta, err := p.provider.Fetch(fetchCtx, id)
	if err != nil {
		if isCancellation(ctx, err) {
			logger.Info("fetch interrupted by cancellation; file left pending",
				logging.String(logging.FieldEventType, "file_deferred"))
			out.Deferred = true
			out.Status = tasks.StatusPending
			return out
		}
		return p.finish(logger, task.ID, out, err, start)
	}

	summary := p.wantsSummary(filename)
	if p.cfg.Processing.DryRun {
		logger.Info("dry run: would inject metadata",
			logging.String(logging.FieldEventType, "dry_run_file"),
			logging.String("gallery_id", id),
			logging.String("title", meta.Title),
			logging.Int("tags", len(meta.Tags)),
			logging.Bool("summary", summary),
			logging.Bool("promote", p.cfg.Processing.ToCBZ))
		out.Deferred = true
		out.Status = tasks.StatusPending
		return out
	}

	if ctx.Err() != nil {
		logger.Info("run cancelled before rewrite; file left pending",
			logging.String(logging.FieldEventType, "file_deferred"))
		out.Deferred = true
		out.Status = tasks.StatusPending
		return out
	}

	// Past this point the file is always finished.
	wctx := context.WithoutCancel(ctx)
	path := filepath.Join(task.FolderPath, filename)

	if _, err := p.rewriter.Normalize(services.WithStage(wctx, "normalize"), path); err != nil {
		return p.finish(logger, task.ID, out, err, start)
	}
	p.cache.Invalidate(path)

	metaJSON, err := metadata.Marshal(meta)
	if err != nil {
		return p.finish(logger, task.ID, out, services.Wrap(services.ErrRewrite, "inject", "encode metadata", filename, err), start)
	}
	var summaryXML []byte
	if summary {
		summaryXML = comicinfo.Generate(meta)
	}
	if err := p.rewriter.InjectMetadata(path, metaJSON, summaryXML); err != nil {
		return p.finish(logger, task.ID, out, err, start)
	}

	if p.cfg.Processing.ToCBZ {
		if promoted, ok := archive.PromotedName(filename); ok {
			err := p.store.RenameFile(task.ID, filename, promoted, func() error {
				_, err := archive.Promote(path)
				return err
			})
			if err != nil {
				return p.finish(logger, task.ID, out, services.Wrap(services.ErrRewrite, "promote", "rename", filename, err), start)
			}
			out.File = promoted
			path = filepath.Join(task.FolderPath, promoted)
			logger = logger.With(logging.String("promoted_to", promoted))
		}
	}

	p.cache.Put(path, archive.MetadataEntry, metaJSON)
	if summaryXML != nil {
		p.cache.Put(path, archive.SummaryEntry, summaryXML)
	}

	var translateErr error
	if p.translator != nil {
		translateErr = p.translateArchive(services.WithStage(wctx, "translate"), path)
		out.TranslationStatus = tasks.StatusSuccess
		if translateErr != nil {
			out.TranslationStatus = tasks.StatusFailed
		}
	}
	return p.finish(logger, task.ID, out, translateErr, start)
}

// finish persists the outcome. err == nil means success.
func (p *Pipeline) finish(logger *slog.Logger, taskID string, out Outcome, err error, start time.Time) Outcome {
	out.Err = err
	out.Status = tasks.StatusSuccess
	if err != nil {
		out.Status = tasks.FailureStatus(err)
		out.Kind = tasks.FailureKind(err)
	}

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if storeErr := p.store.SetFileResult(taskID, out.File, out.Status, out.Kind, errMsg); storeErr != nil {
		logging.ErrorWithContext(logger, "failed to record file status", "file_status_update_failed",
			logging.Error(storeErr),
			logging.String("status", string(out.Status)))
	}
	if out.TranslationStatus != "" {
		translationMsg := ""
		if out.TranslationStatus == tasks.StatusFailed {
			translationMsg = errMsg
		}
		if storeErr := p.store.UpdateTranslationStatus(taskID, out.File, out.TranslationStatus, translationMsg); storeErr != nil {
			logging.ErrorWithContext(logger, "failed to record translation status", "translation_status_update_failed",
				logging.Error(storeErr))
		}
	}

	attrs := []logging.Attr{
		logging.String("status", string(out.Status)),
		logging.Duration("elapsed", elapsedSince(start)),
	}
	switch out.Status {
	case tasks.StatusSuccess:
		logger.Info("file processed", logging.Args(append(attrs, logging.String(logging.FieldEventType, "file_success"))...)...)
	case tasks.StatusSkipped:
		logger.Info("file skipped", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "file_skipped"),
			logging.String("reason", errMsg))...)...)
	default:
		logging.WarnWithContext(logger, "file processing failed", "file_failed", append(attrs,
			logging.Error(err),
			logging.String("error_kind", out.Kind),
			logging.String(logging.FieldErrorHint, failureHint(out.Kind)),
			logging.String(logging.FieldImpact, "file stays failed until retried"))...)
	}
	return out
}

func (p *Pipeline) wantsSummary(filename string) bool {
	return p.cfg.Processing.ToCBZ || strings.EqualFold(filepath.Ext(filename), ".cbz")
}

func failureHint(kind string) string {
	switch kind {
	case "not_found":
		return "check the gallery id in the filename"
	case "transient", tasks.KindTimeout:
		return "rerun with --retry once the provider is reachable"
	case "structure", "rewrite":
		return "inspect the archive with 'mangameta archive inspect'"
	case tasks.KindTranslation:
		return "add the missing tags to the dictionary and run 'task translate --retry-failed'"
	default:
		return "check logs for details"
	}
}
