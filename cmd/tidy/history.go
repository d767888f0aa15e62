package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/tidy/pkg/tidy/config"
	"github.com/jamesainslie/tidy/pkg/tidy/manifest"
	"github.com/spf13/cobra"
)

// maxShownFiles limits the file list of `history show`.
const maxShownFiles = 50

func (a *cli) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "View past runs",
		Long: `View the history of clean and dry runs.

Every run that matched at least one entry is recorded, including which
entries were trashed and which condition matched them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runHistory(cmd.OutOrStdout(), limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of entries to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show details of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistoryShow(cmd.OutOrStdout(), args[0])
		},
	}, &cobra.Command{
		Use:   "clean",
		Short: "Remove entries older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runHistoryClean(cmd.OutOrStdout())
		},
	})

	return cmd
}

func (a *cli) runHistory(w io.Writer, limit int) error {
	m, err := manifest.New(a.cfg.Manifest.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize manifest: %w", err)
	}

	entries, err := m.List(limit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No history entries found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tFILES\tSIZE\tDIRECTORY")
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			entry.ID,
			humanize.Time(entry.Timestamp),
			entry.Summary.TotalFiles,
			humanize.IBytes(uint64(entry.Summary.TotalBytes)),
			entry.Root)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use 'tidy history show <id>' for details on a specific run.")
	return nil
}

func (a *cli) runHistoryShow(w io.Writer, id string) error {
	m, err := manifest.New(a.cfg.Manifest.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize manifest: %w", err)
	}

	entry, err := m.Get(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "ID:         %s\n", entry.ID)
	fmt.Fprintf(w, "Timestamp:  %s\n", entry.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Operation:  %s\n", entry.Operation)
	fmt.Fprintf(w, "Directory:  %s\n", entry.Root)
	fmt.Fprintf(w, "Scanned:    %d (%d excluded)\n", entry.Summary.Scanned, entry.Summary.Excluded)
	fmt.Fprintf(w, "Matched:    %d, %s\n", entry.Summary.TotalFiles, humanize.IBytes(uint64(entry.Summary.TotalBytes)))

	if len(entry.Files) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 60))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIZE\tMODIFIED\tPATH")
	shown := min(len(entry.Files), maxShownFiles)
	for _, f := range entry.Files[:shown] {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", humanize.IBytes(uint64(f.Size)), humanize.Time(f.ModTime), f.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(entry.Files) > shown {
		fmt.Fprintf(w, "\n... and %d more\n", len(entry.Files)-shown)
	}
	return nil
}

func (a *cli) runHistoryClean(w io.Writer) error {
	m, err := manifest.New(a.cfg.Manifest.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize manifest: %w", err)
	}

	retentionDays := a.cfg.Manifest.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	removed, err := m.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	fmt.Fprintf(w, "Removed %d entries older than %d days.\n", removed, retentionDays)
	return nil
}
