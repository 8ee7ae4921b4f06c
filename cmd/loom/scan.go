package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/scan"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: messages.CLIScanShort,
	}
	cmd.AddCommand(
		newScanSourceCmd("tools", "Scan known AI tool config locations"),
		newScanSourceCmd("file <path>", "Scan a single file"),
		newScanSourceCmd("dir <path>", "Scan a directory tree"),
		newScanSourceCmd("url <url>", "Fetch and scan one document"),
		newScanSourceCmd("clipboard", "Scan text from stdin"),
	)
	return cmd
}

func newScanSourceCmd(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			result, _, err := runScan(cmd, a, cmd.Name(), args)
			if err != nil {
				return err
			}
			printScanResult(cmd, result)
			return nil
		},
	}
}

// runScan dispatches to the scanner variant named by source and normalizes
// the batch against canonical names. The returned string labels the source
// in import history.
func runScan(cmd *cobra.Command, a *app, source string, args []string) (scan.Result, string, error) {
	s := a.scanner()
	ctx := cmd.Context()

	var (
		result scan.Result
		label  string
	)
	switch source {
	case "tools":
		result = s.ScanAITool(ctx)
		label = string(scan.SourceAITool)
	case "file":
		path, err := requireArg(args, 0, "path")
		if err != nil {
			return scan.Result{}, "", err
		}
		result = s.ScanFile(ctx, path)
		label = string(scan.SourceFile)
	case "dir":
		path, err := requireArg(args, 0, "path")
		if err != nil {
			return scan.Result{}, "", err
		}
		result = s.ScanDirectory(ctx, path)
		label = string(scan.SourceDirectory)
	case "url":
		rawURL, err := requireArg(args, 0, "url")
		if err != nil {
			return scan.Result{}, "", err
		}
		result = s.ScanURL(ctx, rawURL)
		label = string(scan.SourceURL)
	case "clipboard":
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return scan.Result{}, "", err
		}
		result = s.ScanClipboard(string(raw), "")
		label = string(scan.SourceClipboard)
	default:
		return scan.Result{}, "", fmt.Errorf("unknown scan source %q", source)
	}

	canonical, err := a.Store.List(ctx)
	if err != nil {
		return scan.Result{}, "", err
	}
	names := make([]string, 0, len(canonical))
	for i := range canonical {
		names = append(names, canonical[i].Name)
	}
	result.Candidates = scan.Normalize(result.Candidates, names)
	return result, label, nil
}

func printScanResult(cmd *cobra.Command, result scan.Result) {
	out := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	for _, c := range result.Candidates {
		_, _ = bold.Fprintf(out, "%s", c.ProposedName)
		_, _ = fmt.Fprintf(out, "  [%s/%s]  %s  (%d bytes)\n", c.Type, c.Scope, c.SourceLabel, c.FileSize)
	}
	for _, e := range result.Errors {
		_, _ = color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "warning: %s\n", e)
	}
	_, _ = fmt.Fprintf(out, "%d candidate(s), %d error(s)\n", len(result.Candidates), len(result.Errors))
}
