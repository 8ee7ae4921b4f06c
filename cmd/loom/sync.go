package main

import (
	"fmt"

	"github.com/aymanbagabas/go-udiff"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/notify"
	"github.com/tidewell/loom/internal/registry"
	"github.com/tidewell/loom/internal/syncer"
)

func newSyncCmd() *cobra.Command {
	var (
		preview bool
		prune   bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: messages.CLISyncShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			engine := a.syncEngine()
			opts := syncer.Options{DryRun: preview, Prune: prune || a.Config.Sync.Prune}
			result, err := engine.SyncAll(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if !preview {
				a.Hub.Publish(notify.Event{Kind: notify.KindSyncCompleted})
			}

			printSyncResult(cmd, result, preview)
			if !result.Success {
				return fmt.Errorf("sync finished with %d conflict(s) and %d error(s)",
					len(result.Conflicts), len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "show planned changes as diffs without writing")
	cmd.Flags().BoolVar(&prune, "prune", false, "remove files for deleted or retargeted artifacts")
	return cmd
}

func printSyncResult(cmd *cobra.Command, result *syncer.Result, preview bool) {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	if preview {
		for _, p := range result.Plan {
			switch p.Action {
			case syncer.ActionCreate, syncer.ActionUpdate:
				_, _ = fmt.Fprintln(out, udiff.Unified(p.Path+" (current)", p.Path+" (pending)", p.OldContent, p.NewContent))
			case syncer.ActionRemove:
				_, _ = yellow.Fprintf(out, "would remove %s\n", p.Path)
			}
		}
	} else {
		for _, path := range result.FilesWritten {
			_, _ = green.Fprintf(out, "wrote %s\n", path)
		}
		for _, path := range result.Pruned {
			_, _ = yellow.Fprintf(out, "removed %s\n", path)
		}
	}

	for _, c := range result.Conflicts {
		_, _ = yellow.Fprintf(out, "conflict: %s drifted since the last sync (%s)\n", c.Path, c.AdapterID)
		_, _ = fmt.Fprintf(out, "  resolve with: loom resolve %s %s %s <overwrite|keep-remote>\n",
			c.ArtifactID, c.AdapterID, c.Path)
	}
	for _, e := range result.Errors {
		_, _ = red.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
	}
	_, _ = fmt.Fprintf(out, "%d file(s) written, %d pruned, %d conflict(s), %d error(s)\n",
		len(result.FilesWritten), len(result.Pruned), len(result.Conflicts), len(result.Errors))
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <artifact-id> <adapter> <path> <overwrite|keep-remote>",
		Short: messages.CLIResolveShort,
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			engine := a.syncEngine()
			conflict := syncer.Conflict{
				ArtifactID: args[0],
				AdapterID:  registry.AdapterID(args[1]),
				Path:       args[2],
			}
			if err := engine.ResolveConflict(cmd.Context(), conflict, args[3]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "resolved %s (%s)\n", conflict.Path, args[3])
			return nil
		},
	}
}
