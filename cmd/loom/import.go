package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/importer"
	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/notify"
	"github.com/tidewell/loom/internal/syncer"
)

func newImportCmd() *cobra.Command {
	var (
		mode           string
		scope          string
		adapters       []string
		retryConflicts bool
		noSync         bool
	)
	cmd := &cobra.Command{
		Use:   "import <tools|file|dir|url|clipboard> [arg]",
		Short: messages.CLIImportShort,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			parsedMode, err := parseConflictMode(mode)
			if err != nil {
				return err
			}

			result, label, err := runScan(cmd, a, args[0], args[1:])
			if err != nil {
				return err
			}

			opts := importer.Options{
				ConflictMode: parsedMode,
				SourceType:   label,
				ScanErrors:   result.Errors,
			}
			if scope != "" {
				parsed, err := artifact.ParseScope(scope)
				if err != nil {
					return err
				}
				opts.DefaultScope = &parsed
			}
			if len(adapters) > 0 {
				opts.DefaultAdapters = adapters
			} else if len(a.Config.DefaultAdapters) > 0 {
				opts.DefaultAdapters = a.Config.DefaultAdapters
			}

			exec := importer.New(a.Store)
			if !noSync {
				engine := a.syncEngine()
				exec.AfterImport = func(ctx context.Context) []string {
					syncResult, err := engine.SyncAll(ctx, syncer.Options{Prune: a.Config.Sync.Prune})
					if err != nil {
						return []string{err.Error()}
					}
					return syncResult.Errors
				}
			}

			run, err := exec.Execute(cmd.Context(), result.Candidates, opts)
			if err != nil {
				return err
			}
			if retryConflicts && len(run.Conflicts) > 0 {
				retry, err := exec.RetryConflicts(cmd.Context(), run, opts)
				if err != nil {
					return err
				}
				run.Imported = append(run.Imported, retry.Imported...)
				run.Errors = append(run.Errors, retry.Errors...)
				run.Conflicts = retry.Conflicts
			}
			for i := range run.Imported {
				a.Hub.Publish(notify.Event{Kind: notify.KindArtifactChanged, ArtifactID: run.Imported[i].ID})
			}
			a.Hub.Publish(notify.Event{Kind: notify.KindImportCompleted, Detail: label})

			printImportResult(cmd, run)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "conflict mode: skip, rename or replace (collisions are reported when unset)")
	cmd.Flags().StringVar(&scope, "scope", "", "override candidate scope: global or local")
	cmd.Flags().StringSliceVar(&adapters, "adapters", nil, "override the enabled adapter set")
	cmd.Flags().BoolVar(&retryConflicts, "retry-conflicts", false, "re-import reported conflicts with rename mode")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip the post-import sync")
	return cmd
}

// parseConflictMode validates the --mode flag. The empty string is the
// unset mode: collisions are reported instead of resolved.
func parseConflictMode(mode string) (importer.ConflictMode, error) {
	switch m := importer.ConflictMode(mode); m {
	case "", importer.ModeSkip, importer.ModeRename, importer.ModeReplace:
		return m, nil
	default:
		return "", fmt.Errorf(messages.ImportUnknownModeFmt, mode)
	}
}

func printImportResult(cmd *cobra.Command, run *importer.Result) {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	for i := range run.Imported {
		_, _ = green.Fprintf(out, "imported %s\n", run.Imported[i].Name)
	}
	for _, s := range run.Skipped {
		_, _ = yellow.Fprintf(out, "skipped %s: %s\n", s.Candidate.ProposedName, s.Reason)
	}
	for _, c := range run.Conflicts {
		_, _ = yellow.Fprintf(out, "conflict %s: %s\n", c.Candidate.ProposedName, c.Reason)
	}
	for _, e := range run.Errors {
		_, _ = red.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
	}
	_, _ = fmt.Fprintf(out, "%d imported, %d skipped, %d conflict(s), %d error(s)\n",
		len(run.Imported), len(run.Skipped), len(run.Conflicts), len(run.Errors))
}
