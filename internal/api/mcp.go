package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/workbook/internal/journal"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Journal *journal.Journal
	Slots   SlotReader // optional
}

// NewMCPServer creates an MCP server with the workbook tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"workbook",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("workbook: local CBT journal. Each section keeps its own list of entries."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_sections",
			mcp.WithDescription("List workbook sections with their entry counts and aggregates."),
		),
		mcpListSections(deps),
	)

	s.AddTool(
		mcp.NewTool("list_entries",
			mcp.WithDescription("Return the entries of one section, newest first."),
			mcp.WithString("section", mcp.Description("Section name, e.g. selfendorse"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default all)")),
		),
		mcpListEntries(deps),
	)

	s.AddTool(
		mcp.NewTool("add_entry",
			mcp.WithDescription("Create an entry in a section. Entries missing required fields are rejected."),
			mcp.WithString("section", mcp.Description("Section name"), mcp.Required()),
			mcp.WithString("entry", mcp.Description("JSON object with the entry's fields"), mcp.Required()),
		),
		mcpAddEntry(deps),
	)

	s.AddTool(
		mcp.NewTool("update_entry",
			mcp.WithDescription("Merge fields into an existing entry."),
			mcp.WithString("section", mcp.Description("Section name"), mcp.Required()),
			mcp.WithNumber("id", mcp.Description("Entry id"), mcp.Required()),
			mcp.WithString("patch", mcp.Description("JSON object with the fields to change"), mcp.Required()),
		),
		mcpUpdateEntry(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_entry",
			mcp.WithDescription("Permanently delete an entry."),
			mcp.WithString("section", mcp.Description("Section name"), mcp.Required()),
			mcp.WithNumber("id", mcp.Description("Entry id"), mcp.Required()),
		),
		mcpDeleteEntry(deps),
	)

	s.AddTool(
		mcp.NewTool("entry_summary",
			mcp.WithDescription("Compute the derived totals for one entry (scores, balances, differences)."),
			mcp.WithString("section", mcp.Description("Section name"), mcp.Required()),
			mcp.WithNumber("id", mcp.Description("Entry id"), mcp.Required()),
		),
		mcpEntrySummary(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"workbook://sections",
			"Workbook Sections",
			mcp.WithResourceDescription("Every section with its entry count and aggregate"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSections(deps),
	)

	return s
}

func mcpSection(deps MCPDeps, req mcp.CallToolRequest) (journal.Section, *mcp.CallToolResult) {
	name, err := req.RequireString("section")
	if err != nil {
		return nil, mcpError("section is required")
	}
	s, ok := deps.Journal.Section(name)
	if !ok {
		return nil, mcpError(fmt.Sprintf("unknown section %q", name))
	}
	return s, nil
}

// mcpEntryID reads the required id argument. Zero is a valid id: planner
// blocks are keyed by hour.
func mcpEntryID(req mcp.CallToolRequest) (int64, *mcp.CallToolResult) {
	v, err := req.RequireFloat("id")
	if err != nil {
		return 0, mcpError("id is required")
	}
	if v < 0 || v != math.Trunc(v) {
		return 0, mcpError(fmt.Sprintf("invalid id %v", v))
	}
	return int64(v), nil
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpListSections(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpJSON(describeAll(deps.Journal, deps.Slots)), nil
	}
}

func mcpListEntries(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, errResult := mcpSection(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		limit := req.GetInt("limit", 0)
		if limit < 0 {
			limit = 0
		}
		entries, _ := s.Page(0, limit)
		return mcpJSON(entries), nil
	}
}

func mcpAddEntry(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, errResult := mcpSection(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		entry, err := req.RequireString("entry")
		if err != nil {
			return mcpError("entry is required"), nil
		}

		rec, ok, err := s.Create(json.RawMessage(entry))
		if err != nil {
			return mcpError(fmt.Sprintf("invalid entry: %v", err)), nil
		}
		if !ok {
			return mcpError("entry is missing required fields"), nil
		}
		return mcpJSON(rec), nil
	}
}

func mcpUpdateEntry(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, errResult := mcpSection(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		id, errResult := mcpEntryID(req)
		if errResult != nil {
			return errResult, nil
		}
		patch, err := req.RequireString("patch")
		if err != nil {
			return mcpError("patch is required"), nil
		}

		rec, ok, err := s.Patch(id, json.RawMessage(patch))
		if err != nil {
			return mcpError(fmt.Sprintf("invalid patch: %v", err)), nil
		}
		if !ok {
			return mcpText(fmt.Sprintf("No entry %d in %s; nothing changed", id, s.Name())), nil
		}
		return mcpJSON(rec), nil
	}
}

func mcpDeleteEntry(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, errResult := mcpSection(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		id, errResult := mcpEntryID(req)
		if errResult != nil {
			return errResult, nil
		}
		if !s.Remove(id) {
			return mcpText(fmt.Sprintf("No entry %d in %s; nothing changed", id, s.Name())), nil
		}
		return mcpText(fmt.Sprintf("Deleted entry %d from %s", id, s.Name())), nil
	}
}

func mcpEntrySummary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, errResult := mcpSection(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		id, errResult := mcpEntryID(req)
		if errResult != nil {
			return errResult, nil
		}
		summary, ok := s.Summary(id)
		if !ok {
			return mcpError(fmt.Sprintf("entry %d not found in %s", id, s.Name())), nil
		}
		return mcpJSON(summary), nil
	}
}

func mcpResourceSections(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(describeAll(deps.Journal, deps.Slots))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sections: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
