package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/migrate"
	"github.com/tidewell/loom/internal/notify"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: messages.CLIMigrateShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			m := migrate.New(a.Store)
			progress, err := m.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			a.Hub.Publish(notify.Event{Kind: notify.KindMigration, Detail: string(progress.Status)})

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "migrated %d of %d artifact(s) to file storage\n", progress.Migrated, progress.Total)
			_, _ = fmt.Fprintf(out, "backup: %s\n", progress.BackupPath)
			for _, e := range progress.Errors {
				_, _ = color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
			}
			if progress.Status != migrate.StatusCompleted {
				return fmt.Errorf("migration finished with status %s", progress.Status)
			}
			return nil
		},
	}
	cmd.AddCommand(newMigrateStatusCmd(), newMigrateVerifyCmd(), newMigrateRollbackCmd())
	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the storage mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "storage mode: %s\n", a.Store.StorageMode(cmd.Context()))
			return nil
		},
	}
}

func newMigrateVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Compare database and file representations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			report, err := migrate.New(a.Store).Verify(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "database: %d artifact(s), files: %d artifact(s)\n", report.SourceCount, report.DestCount)
			if report.Clean() {
				_, _ = color.New(color.FgGreen).Fprintln(out, "representations match")
				return nil
			}
			for _, id := range report.Missing {
				_, _ = fmt.Fprintf(out, "missing from files: %s\n", id)
			}
			for _, id := range report.Extra {
				_, _ = fmt.Fprintf(out, "extra in files: %s\n", id)
			}
			for _, id := range report.Mismatched {
				_, _ = fmt.Fprintf(out, "content mismatch: %s\n", id)
			}
			if report.LoadErrors > 0 {
				_, _ = fmt.Fprintf(out, "%d file(s) failed to load\n", report.LoadErrors)
			}
			return fmt.Errorf("verification found differences")
		},
	}
}

func newMigrateRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <backup-path>",
		Short: "Restore the store from a migration backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			if err := migrate.New(a.Store).Rollback(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.Hub.Publish(notify.Event{Kind: notify.KindMigration, Detail: string(migrate.StatusRolledBack)})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "restored store from %s\n", args[0])
			return nil
		},
	}
}
