package main

import (
	"github.com/spf13/cobra"

	"github.com/tidewell/loom/internal/mcpserver"
	"github.com/tidewell/loom/internal/messages"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: messages.CLIMCPShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			return mcpserver.RunServer(cmd.Context(), Version, a.Store, a.Hub)
		},
	}
}
