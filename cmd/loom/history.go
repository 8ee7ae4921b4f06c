package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidewell/loom/internal/messages"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: messages.CLIHistoryShort,
	}
	cmd.AddCommand(newHistoryImportCmd(), newHistorySyncCmd())
	return cmd
}

func newHistoryImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Show import runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			entries, err := a.Store.ImportHistory(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				_, _ = fmt.Fprintf(out, "%s  %-10s  %d imported, %d skipped, %d conflict(s), %d error(s)\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.SourceType,
					e.Imported, e.Skipped, e.Conflicts, e.Errors)
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(out, "no import runs recorded")
			}
			return nil
		},
	}
}

func newHistorySyncCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Show sync runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			entries, err := a.Store.SyncHistory(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				status := "ok"
				if !e.Success {
					status = "failed"
				}
				_, _ = fmt.Fprintf(out, "%s  %-6s  %d file(s) written, %d conflict(s), %d error(s)\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"), status,
					e.FilesWritten, e.Conflicts, e.Errors)
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(out, "no sync runs recorded")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}
