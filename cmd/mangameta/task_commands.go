package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mangameta/internal/config"
	"mangameta/internal/fileutil"
	"mangameta/internal/tasks"
	"mangameta/internal/textutil"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Register folders and process their archives",
	}

	taskCmd.AddCommand(newTaskCreateCommand(ctx))
	taskCmd.AddCommand(newTaskListCommand(ctx))
	taskCmd.AddCommand(newTaskShowCommand(ctx))
	taskCmd.AddCommand(newTaskStartCommand(ctx))
	taskCmd.AddCommand(newTaskTranslateCommand(ctx))
	taskCmd.AddCommand(newTaskDeleteCommand(ctx))
	taskCmd.AddCommand(newTaskExportCommand(ctx))

	return taskCmd
}

func newTaskCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create <folder>",
		Short: "Register a folder of archives as a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve folder: %w", err)
			}
			return ctx.withStore(func(store *tasks.Store) error {
				task, created, err := store.Create(folder)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !created {
					fmt.Fprintf(out, "Task %s already exists for %s\n", task.ID, task.FolderPath)
					return nil
				}
				fmt.Fprintf(out, "Created task %s for %s (%d archives)\n", task.ID, task.FolderPath, task.Statistics.Total)
				return nil
			})
		},
	}
}

func newTaskListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *tasks.Store) error {
				list := store.List()
				if asJSON {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks registered")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, task := range list {
					s := task.Statistics
					rows = append(rows, []string{
						task.ID,
						task.FolderPath,
						strconv.Itoa(s.Total),
						strconv.Itoa(s.Pending),
						strconv.Itoa(s.Success),
						strconv.Itoa(s.Failed),
						strconv.Itoa(s.Skipped),
						fmt.Sprintf("%.1f%%", task.Progress()),
					})
				}
				headers := []string{"ID", "Folder", "Total", "Pending", "Success", "Failed", "Skipped", "Progress"}
				aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newTaskShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var showFiles bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show task progress and per-file status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *tasks.Store) error {
				task, err := store.Get(args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, task)
				}
				out := cmd.OutOrStdout()
				s := task.Statistics
				fmt.Fprint(out, renderFields([][2]string{
					{"ID", task.ID},
					{"Folder", task.FolderPath},
					{"Created", task.CreatedAt.Local().Format("2006-01-02 15:04:05")},
					{"Updated", task.UpdatedAt.Local().Format("2006-01-02 15:04:05")},
					{"Progress", fmt.Sprintf("%.1f%% of %d", task.Progress(), s.Total)},
					{"Pending", strconv.Itoa(s.Pending)},
					{"Success", strconv.Itoa(s.Success)},
					{"Failed", strconv.Itoa(s.Failed)},
					{"Skipped", strconv.Itoa(s.Skipped)},
					{"Translated", fmt.Sprintf("%d ok, %d failed, %d pending", s.TranslationSuccess, s.TranslationFailed, s.TranslationPending)},
				}))
				if showFiles {
					fmt.Fprint(out, renderTable(
						[]string{"File", "Status", "Translation", "Error"},
						fileRows(task),
						nil))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showFiles, "files", false, "List every file with its status")
	return cmd
}

func fileRows(task tasks.Task) [][]string {
	names := make([]string, 0, len(task.Files))
	for name := range task.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rec := task.Files[name]
		errText := rec.Error
		if errText == "" {
			errText = rec.TranslationError
		}
		rows = append(rows, []string{name, string(rec.Status), string(rec.TranslationStatus), truncate(errText, 60)})
	}
	return rows
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func newTaskDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task record (archives are not touched)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *tasks.Store) error {
				if err := store.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
				return nil
			})
		},
	}
}

const exportTranslationFailed = "translation-failed"

func newTaskExportCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var output string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write the filenames with a given status, one per line",
		Long: `Write the filenames with a given status, one per line.

For failed, skipped and translation-failed exports each line carries the
recorded error after the name: "<file> - <error>".`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *tasks.Store) error {
				task, err := store.Get(args[0])
				if err != nil {
					return err
				}
				names, label, err := exportSelection(store, task.ID, statusFlag)
				if err != nil {
					return err
				}

				content := strings.Join(exportLines(task, names, label), "\n")
				if content != "" {
					content += "\n"
				}
				if output == "-" {
					fmt.Fprint(cmd.OutOrStdout(), content)
					return nil
				}
				target := output
				if target == "" {
					target = fmt.Sprintf("%s_%s.txt", textutil.SanitizeFileName(filepath.Base(task.FolderPath)), label)
				}
				if err := fileutil.WriteFileAtomic(target, []byte(content), 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d %s file(s) to %s\n", len(names), label, target)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&statusFlag, "status", "", "pending|success|failed|skipped|translation-failed")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file; '-' writes to stdout")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func exportSelection(store *tasks.Store, id, value string) ([]string, string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == exportTranslationFailed {
		names, err := store.FilesWithTranslationStatus(id, tasks.StatusFailed)
		return names, value, err
	}
	status, ok := tasks.ParseStatus(value)
	if !ok {
		return nil, "", errors.New("--status must be one of pending, success, failed, skipped, translation-failed")
	}
	names, err := store.FilesWithStatus(id, status)
	return names, string(status), err
}

// exportLines renders one line per file, appending the recorded error for
// statuses that have one.
func exportLines(task tasks.Task, names []string, label string) []string {
	lines := make([]string, 0, len(names))
	for _, name := range names {
		rec := task.Files[name]
		var detail string
		switch label {
		case exportTranslationFailed:
			detail = rec.TranslationError
		case string(tasks.StatusFailed), string(tasks.StatusSkipped):
			detail = rec.Error
		}
		if detail = strings.TrimSpace(detail); detail != "" {
			lines = append(lines, name+" - "+detail)
			continue
		}
		lines = append(lines, name)
	}
	return lines
}
