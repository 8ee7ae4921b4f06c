package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidewell/loom/internal/config"
	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/notify"
	"github.com/tidewell/loom/internal/registry"
	"github.com/tidewell/loom/internal/scan"
	"github.com/tidewell/loom/internal/store"
	"github.com/tidewell/loom/internal/syncer"
)

var homeFlag string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "loom",
		Short:         messages.CLIRootShort,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&homeFlag, "home", "", "base directory for the store and config (default ~/.loom)")

	cmd.AddCommand(
		newScanCmd(),
		newImportCmd(),
		newSyncCmd(),
		newResolveCmd(),
		newMigrateCmd(),
		newHistoryCmd(),
		newAddCmd(),
		newListCmd(),
		newRemoveCmd(),
		newRestoreCmd(),
		newDuplicateCmd(),
		newToggleCmd(),
		newMCPCmd(),
	)
	return cmd
}

// app bundles everything a command needs. Close releases the store.
type app struct {
	Config   *config.Config
	Store    *store.Store
	Registry *registry.Registry
	Hub      *notify.Hub
}

func openApp() (*app, func(), error) {
	baseDir := homeFlag
	if baseDir == "" {
		resolved, err := config.ResolveBaseDir()
		if err != nil {
			return nil, nil, err
		}
		baseDir = resolved
	}
	cfg, err := config.Load(baseDir)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(baseDir)
	if err != nil {
		return nil, nil, err
	}
	a := &app{
		Config:   cfg,
		Store:    st,
		Registry: registry.Default(),
		Hub:      notify.NewHub(),
	}
	return a, func() { _ = st.Close() }, nil
}

func (a *app) scanner() *scan.Scanner {
	s := scan.New(a.Registry)
	if a.Config.Scan.MaxFileSizeBytes > 0 {
		s.MaxFileSize = a.Config.Scan.MaxFileSizeBytes
	}
	if a.Config.Scan.MaxCandidates > 0 {
		s.MaxCandidates = a.Config.Scan.MaxCandidates
	}
	if a.Config.Scan.MaxDepth > 0 {
		s.MaxDepth = a.Config.Scan.MaxDepth
	}
	s.WorkspaceRoots = a.Config.WorkspaceRoots
	return s
}

func (a *app) syncEngine() *syncer.Engine {
	e := syncer.New(a.Store, a.Registry)
	if a.Config.Sync.Parallel > 0 {
		e.Parallel = a.Config.Sync.Parallel
	}
	return e
}

func requireArg(args []string, index int, name string) (string, error) {
	if index >= len(args) {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return args[index], nil
}
