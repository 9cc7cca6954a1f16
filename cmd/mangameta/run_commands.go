package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mangameta/internal/config"
	"mangameta/internal/pipeline"
)

// runFlags holds per-run overrides of the processing section.
type runFlags struct {
	threads   int
	delay     float64
	retry     bool
	toCBZ     bool
	dryRun    bool
	batchMode bool
	batchSize int
	cacheSize int
	diskLimit float64
	asJSON    bool
}

func newTaskStartCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Fetch metadata for the task's pending files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := pipeline.ModePending
			if flags.retry {
				mode = pipeline.ModeRetry
			}
			return runPipeline(cmd, ctx, args[0], mode, flags, false)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&flags.threads, "threads", "t", 0, "Concurrent workers")
	f.Float64VarP(&flags.delay, "delay", "d", 0, "Seconds to pause after each round of submissions")
	f.BoolVar(&flags.retry, "retry", false, "Reprocess failed files")
	f.BoolVar(&flags.toCBZ, "to-cbz", false, "Rename .zip archives to .cbz and add ComicInfo.xml")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Fetch and report without modifying archives")
	f.BoolVar(&flags.batchMode, "batch-mode", false, "Process files in batches with preloaded entry caches")
	f.IntVar(&flags.batchSize, "batch-size", 0, "Files per batch")
	f.IntVar(&flags.cacheSize, "cache-size", 0, "Archive entry cache capacity")
	f.Float64Var(&flags.diskLimit, "disk-limit", 0, "Write throughput limit in MB/s (0 = unlimited)")
	f.BoolVar(&flags.asJSON, "json", false, "Print the run report as JSON")
	return cmd
}

func newTaskTranslateCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	var retryFailed bool
	cmd := &cobra.Command{
		Use:   "translate <id>",
		Short: "Translate tags in archives that already carry metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := pipeline.ModeTranslate
			if retryFailed {
				mode = pipeline.ModeRetryTranslation
			}
			return runPipeline(cmd, ctx, args[0], mode, flags, true)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&retryFailed, "retry-failed", false, "Retranslate files whose translation failed")
	f.IntVarP(&flags.threads, "threads", "t", 0, "Concurrent workers")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Report without modifying archives")
	f.BoolVar(&flags.asJSON, "json", false, "Print the run report as JSON")
	return cmd
}

// applyRunFlags copies base and applies the flags the user set.
func applyRunFlags(cmd *cobra.Command, base *config.Config, flags runFlags) (*config.Config, error) {
	cfg := *base
	changed := cmd.Flags().Changed
	if changed("threads") {
		cfg.Processing.Workers = flags.threads
	}
	if changed("delay") {
		cfg.Processing.DispatchDelaySeconds = flags.delay
	}
	if changed("to-cbz") {
		cfg.Processing.ToCBZ = flags.toCBZ
	}
	if changed("dry-run") {
		cfg.Processing.DryRun = flags.dryRun
	}
	if changed("batch-mode") {
		cfg.Processing.BatchMode = flags.batchMode
	}
	if changed("batch-size") {
		cfg.Processing.BatchSize = flags.batchSize
	}
	if changed("cache-size") {
		cfg.Processing.CacheSize = flags.cacheSize
	}
	if changed("disk-limit") {
		cfg.Processing.DiskLimitMB = flags.diskLimit
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, taskID string, mode pipeline.Mode, flags runFlags, translate bool) error {
	base, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	cfg, err := applyRunFlags(cmd, base, flags)
	if err != nil {
		return err
	}
	rt, err := ctx.newRuntime(cfg, translate)
	if err != nil {
		return err
	}
	defer rt.close()

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := rt.pipeline.Run(runCtx, taskID, pipeline.RunOptions{Mode: mode})
	if runErr != nil && report.Files == 0 && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	if flags.asJSON {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	} else {
		printRunReport(cmd.OutOrStdout(), report, cfg)
	}
	if errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Run interrupted; unfinished files remain pending")
	}
	return runErr
}

func printRunReport(out io.Writer, report pipeline.Report, cfg *config.Config) {
	s := report.Statistics
	fields := [][2]string{
		{"Task", report.TaskID},
		{"Run", report.RunID},
		{"Mode", string(report.Mode)},
		{"Dry run", yesNo(report.DryRun)},
		{"Selected", strconv.Itoa(report.Files)},
		{"Dispatched", strconv.Itoa(report.Summary.Dispatched)},
		{"Completed", strconv.Itoa(report.Summary.Completed)},
		{"Errored", strconv.Itoa(report.Summary.Errored)},
		{"Deferred", strconv.Itoa(report.Summary.Deferred)},
		{"Timed out", strconv.Itoa(report.Summary.TimedOut)},
		{"Not started", strconv.Itoa(report.Summary.Cancelled)},
		{"Elapsed", report.Summary.Elapsed.String()},
		{"Task totals", fmt.Sprintf("%d success, %d failed, %d skipped, %d pending", s.Success, s.Failed, s.Skipped, s.Pending)},
	}
	if report.Mode == pipeline.ModeTranslate || report.Mode == pipeline.ModeRetryTranslation || cfg.Translation.Enabled {
		fields = append(fields,
			[2]string{"Translations", fmt.Sprintf("%d ok, %d failed, %d pending", s.TranslationSuccess, s.TranslationFailed, s.TranslationPending)},
			[2]string{"Untranslated tags", strconv.Itoa(report.Untranslated)})
	}
	if c := report.Cache; c.Hits+c.Misses > 0 {
		fields = append(fields, [2]string{"Entry cache", fmt.Sprintf("%s hits, %s misses, %d evictions",
			humanize.Comma(int64(c.Hits)), humanize.Comma(int64(c.Misses)), c.Evictions)})
	}
	fmt.Fprint(out, renderFields(fields))
}
