// Package mcpserver exposes the canonical store to MCP clients: one prompt
// per enabled slash-command artifact and a status tool reporting store
// counts and the most recent change event.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/notify"
	"github.com/tidewell/loom/internal/store"
)

type serverRunner func(ctx context.Context, server *mcp.Server) error

// RunServer starts the companion MCP server over stdio.
func RunServer(ctx context.Context, version string, st *store.Store, hub *notify.Hub) error {
	return runServer(ctx, version, st, hub, defaultServerRunner)
}

// runServer builds the MCP server and runs it using the provided runner.
func runServer(ctx context.Context, version string, st *store.Store, hub *notify.Hub, runner serverRunner) error {
	if runner == nil {
		return fmt.Errorf(messages.McpRunServerFailedFmt, errors.New("server runner is nil"))
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "loom",
		Version: version,
	}, nil)

	artifacts, err := st.List(ctx)
	if err != nil {
		return fmt.Errorf(messages.McpRunServerFailedFmt, err)
	}
	for i := range artifacts {
		a := artifacts[i]
		if a.Type != artifact.TypeCommand || !a.Enabled {
			continue
		}
		prompt := &mcp.Prompt{
			Name:        a.Name,
			Description: a.Description,
		}
		server.AddPrompt(prompt, promptHandler(a))
	}

	server.AddTool(&mcp.Tool{
		Name:        "loom_status",
		Description: "Report artifact counts, storage mode and the latest change event",
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}, statusHandler(st, hub))

	if err := runner(ctx, server); err != nil {
		return fmt.Errorf(messages.McpRunServerFailedFmt, err)
	}
	return nil
}

// defaultServerRunner runs the MCP server over stdio.
func defaultServerRunner(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

func promptHandler(a artifact.Artifact) func(context.Context, *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: a.Description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: a.Content},
				},
			},
		}, nil
	}
}

type statusReport struct {
	Artifacts   map[string]int `json:"artifacts"`
	Enabled     int            `json:"enabled"`
	StorageMode string         `json:"storageMode"`
	LastEvent   *notify.Event  `json:"lastEvent,omitempty"`
}

func statusHandler(st *store.Store, hub *notify.Hub) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		artifacts, err := st.List(ctx)
		if err != nil {
			res := mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}
			return &res, nil
		}
		report := statusReport{
			Artifacts:   make(map[string]int),
			StorageMode: string(st.StorageMode(ctx)),
		}
		for i := range artifacts {
			report.Artifacts[string(artifacts[i].Type)]++
			if artifacts[i].Enabled {
				report.Enabled++
			}
		}
		if hub != nil {
			if last, ok := hub.Last(); ok {
				report.LastEvent = &last
			}
		}
		data, err := json.Marshal(report)
		if err != nil {
			res := mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	}
}
