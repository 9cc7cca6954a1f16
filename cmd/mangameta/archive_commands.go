package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mangameta/internal/archive"
	"mangameta/internal/config"
	"mangameta/internal/metadata"
)

func newArchiveCommand() *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:         "archive",
		Short:       "Archive diagnostics",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	archiveCmd.AddCommand(newArchiveInspectCommand())
	return archiveCmd
}

func newArchiveInspectCommand() *cobra.Command {
	var asJSON bool
	var listNames bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Summarize an archive's layout and reserved entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			report, err := archive.Inspect(path)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}

			galleryID := "-"
			if id, err := metadata.ExtractID(filepath.Base(path)); err == nil {
				galleryID = id
			}
			layout := string(report.Structure.Layout)
			if report.Structure.Folder != "" {
				layout += " (" + report.Structure.Folder + ")"
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderFields([][2]string{
				{"Path", report.Path},
				{"Gallery ID", galleryID},
				{"Size", humanize.IBytes(uint64(report.Size))},
				{"SHA-256", report.SHA256},
				{"Layout", layout},
				{"Entries", strconv.Itoa(report.Entries)},
				{"Directories", strconv.Itoa(report.Directories)},
				{"Compressed", humanize.IBytes(report.CompressedBytes)},
				{"Uncompressed", humanize.IBytes(report.UncompressedBytes)},
				{archive.MetadataEntry, yesNo(report.HasMetadata)},
				{archive.SummaryEntry, yesNo(report.HasSummary)},
			}))
			if listNames {
				rows := make([][]string, 0, len(report.Names))
				for i, name := range report.Names {
					rows = append(rows, []string{strconv.Itoa(i + 1), name})
				}
				fmt.Fprint(out, renderTable([]string{"#", "Name"}, rows, []columnAlignment{alignRight, alignLeft}))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&listNames, "names", false, "List every entry name")
	return cmd
}
