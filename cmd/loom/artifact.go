package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/notify"
	"github.com/tidewell/loom/internal/store"
)

func newAddCmd() *cobra.Command {
	var (
		name        string
		description string
		typ         string
		scope       string
		file        string
		adapters    []string
		targets     []string
		disabled    bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: messages.CLIAddShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			parsedType, err := artifact.ParseType(typ)
			if err != nil {
				return err
			}
			parsedScope, err := artifact.ParseScope(scope)
			if err != nil {
				return err
			}

			var content []byte
			if file != "" {
				content, err = os.ReadFile(file)
			} else {
				content, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			if len(adapters) == 0 {
				adapters = a.Config.DefaultAdapters
			}
			created, err := a.Store.Create(cmd.Context(), store.CreateInput{
				Name:            name,
				Description:     description,
				Content:         string(content),
				Type:            parsedType,
				Scope:           parsedScope,
				TargetPaths:     targets,
				EnabledAdapters: adapters,
				Enabled:         !disabled,
			})
			if err != nil {
				return err
			}
			a.Hub.Publish(notify.Event{Kind: notify.KindArtifactChanged, ArtifactID: created.ID})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "artifact name (required)")
	cmd.Flags().StringVar(&description, "description", "", "short description")
	cmd.Flags().StringVar(&typ, "type", "rule", "artifact type: rule, command or skill")
	cmd.Flags().StringVar(&scope, "scope", "global", "placement scope: global or local")
	cmd.Flags().StringVar(&file, "file", "", "read content from this file instead of stdin")
	cmd.Flags().StringSliceVar(&adapters, "adapters", nil, "adapter IDs to project to")
	cmd.Flags().StringSliceVar(&targets, "target", nil, "workspace roots for local scope")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the artifact disabled")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: messages.CLIListShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			artifacts, err := a.Store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			dim := color.New(color.Faint)
			for i := range artifacts {
				art := &artifacts[i]
				state := "enabled"
				if !art.Enabled {
					state = "disabled"
				}
				_, _ = fmt.Fprintf(out, "%-30s  %-7s  %-6s  %-8s  ", art.Name, art.Type, art.Scope, state)
				_, _ = dim.Fprintf(out, "%s\n", art.ID)
			}
			_, _ = fmt.Fprintf(out, "%d artifact(s)\n", len(artifacts))
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: messages.CLIRemoveShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			if err := a.Store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.Hub.Publish(notify.Event{Kind: notify.KindArtifactChanged, ArtifactID: args[0]})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (restore with: loom restore)\n", args[0])
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: messages.CLIRestoreShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			restored, err := a.Store.Restore(cmd.Context())
			if err != nil {
				return err
			}
			a.Hub.Publish(notify.Event{Kind: notify.KindArtifactChanged, ArtifactID: restored.ID})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "restored %s (%s)\n", restored.Name, restored.ID)
			return nil
		},
	}
}

func newDuplicateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <id>",
		Short: messages.CLIDuplicateShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			dup, err := a.Store.Duplicate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.Hub.Publish(notify.Event{Kind: notify.KindArtifactChanged, ArtifactID: dup.ID})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "duplicated as %s (%s)\n", dup.Name, dup.ID)
			return nil
		},
	}
}

func newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: messages.CLIToggleShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			toggled, err := a.Store.Toggle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.Hub.Publish(notify.Event{Kind: notify.KindArtifactChanged, ArtifactID: toggled.ID})
			state := "disabled"
			if toggled.Enabled {
				state = "enabled"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", state, toggled.Name)
			return nil
		},
	}
}
