package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/workbook/internal/journal"
	"github.com/kalambet/workbook/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return MCPDeps{
		Journal: journal.New(store, journal.WithClock(func() time.Time { return testNow })),
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), makeCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func addTestEntry(t *testing.T, deps MCPDeps) int64 {
	t.Helper()
	result := callTool(t, mcpAddEntry(deps), "add_entry", map[string]interface{}{
		"section": "butrebuttal",
		"entry":   `{"but":"I should exercise but I'm tired","rebuttal":"A short walk will wake me up"}`,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var rec struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &rec); err != nil {
		t.Fatalf("parsing created entry: %v", err)
	}
	return rec.ID
}

// --- tests ---

func TestMCPTool_ListSections(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpListSections(deps), "list_sections", nil)
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var infos []SectionInfo
	if err := json.Unmarshal([]byte(toolText(t, result)), &infos); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(infos) != len(deps.Journal.Sections()) {
		t.Fatalf("expected %d sections, got %d", len(deps.Journal.Sections()), len(infos))
	}
}

func TestMCPTool_AddEntry(t *testing.T) {
	deps := newTestMCPDeps(t)
	id := addTestEntry(t, deps)
	if id != testNow.UnixMilli() {
		t.Errorf("id = %d, want %d", id, testNow.UnixMilli())
	}

	s, _ := deps.Journal.Section("butrebuttal")
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
}

func TestMCPTool_AddEntry_Invalid(t *testing.T) {
	deps := newTestMCPDeps(t)
	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing section", map[string]interface{}{"entry": `{"but":"x","rebuttal":"y"}`}},
		{"unknown section", map[string]interface{}{"section": "nope", "entry": `{}`}},
		{"missing entry", map[string]interface{}{"section": "butrebuttal"}},
		{"malformed entry", map[string]interface{}{"section": "butrebuttal", "entry": `{`}},
		{"blank fields", map[string]interface{}{"section": "butrebuttal", "entry": `{"but":" ","rebuttal":""}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, mcpAddEntry(deps), "add_entry", tt.args)
			if !result.IsError {
				t.Fatalf("expected error result, got %s", toolText(t, result))
			}
		})
	}

	s, _ := deps.Journal.Section("butrebuttal")
	if s.Len() != 0 {
		t.Errorf("expected no entries, got %d", s.Len())
	}
}

func TestMCPTool_UpdateAndDeleteEntry(t *testing.T) {
	deps := newTestMCPDeps(t)
	id := addTestEntry(t, deps)

	result := callTool(t, mcpUpdateEntry(deps), "update_entry", map[string]interface{}{
		"section": "butrebuttal",
		"id":      float64(id),
		"patch":   `{"rebuttal":"Ten minutes counts"}`,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "Ten minutes counts") {
		t.Errorf("updated entry not returned: %s", toolText(t, result))
	}

	result = callTool(t, mcpDeleteEntry(deps), "delete_entry", map[string]interface{}{
		"section": "butrebuttal",
		"id":      float64(id),
	})
	if result.IsError || !strings.HasPrefix(toolText(t, result), "Deleted") {
		t.Fatalf("unexpected delete result: %s", toolText(t, result))
	}

	result = callTool(t, mcpDeleteEntry(deps), "delete_entry", map[string]interface{}{
		"section": "butrebuttal",
		"id":      float64(id),
	})
	if result.IsError || !strings.Contains(toolText(t, result), "nothing changed") {
		t.Fatalf("second delete should be a no-op: %s", toolText(t, result))
	}
}

func TestMCPTool_PlannerHourZero(t *testing.T) {
	deps := newTestMCPDeps(t)

	result := callTool(t, mcpUpdateEntry(deps), "update_entry", map[string]interface{}{
		"section": "dailyplanner",
		"id":      float64(0),
		"patch":   `{"activity":"sleep"}`,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "sleep") {
		t.Errorf("updated hour not returned: %s", toolText(t, result))
	}

	result = callTool(t, mcpEntrySummary(deps), "entry_summary", map[string]interface{}{
		"section": "dailyplanner",
		"id":      float64(0),
	})
	if result.IsError {
		t.Fatalf("summary of hour 0: %s", toolText(t, result))
	}

	result = callTool(t, mcpEntrySummary(deps), "entry_summary", map[string]interface{}{
		"section": "dailyplanner",
		"id":      float64(-1),
	})
	if !result.IsError {
		t.Error("negative id should be rejected")
	}
}

func TestMCPTool_UpdateEntry_MissingID(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpUpdateEntry(deps), "update_entry", map[string]interface{}{
		"section": "butrebuttal",
		"patch":   `{}`,
	})
	if !result.IsError {
		t.Fatal("expected error without id")
	}
}

func TestMCPTool_EntrySummary(t *testing.T) {
	deps := newTestMCPDeps(t)
	add := callTool(t, mcpAddEntry(deps), "add_entry", map[string]interface{}{
		"section": "riskreward",
		"entry":   `{"behavior":"Skipping the gym","risk1":"Lower energy","reward1":"More sleep","reward2":"Time to read","riskWeight":8,"rewardWeight":3}`,
	})
	if add.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, add))
	}
	var rec struct {
		ID int64 `json:"id"`
	}
	json.Unmarshal([]byte(toolText(t, add)), &rec)

	result := callTool(t, mcpEntrySummary(deps), "entry_summary", map[string]interface{}{
		"section": "riskreward",
		"id":      float64(rec.ID),
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var summary struct {
		Risks   int `json:"risks"`
		Rewards int `json:"rewards"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &summary); err != nil {
		t.Fatalf("failed to parse summary: %v", err)
	}
	if summary.Risks != 1 || summary.Rewards != 2 {
		t.Errorf("summary = %+v, want 1 risk and 2 rewards", summary)
	}

	missing := callTool(t, mcpEntrySummary(deps), "entry_summary", map[string]interface{}{
		"section": "riskreward",
		"id":      float64(1),
	})
	if !missing.IsError {
		t.Error("expected error for missing entry")
	}
}

func TestMCPTool_ListEntries(t *testing.T) {
	deps := newTestMCPDeps(t)
	addTestEntry(t, deps)
	addTestEntry(t, deps)

	result := callTool(t, mcpListEntries(deps), "list_entries", map[string]interface{}{
		"section": "butrebuttal",
		"limit":   1,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(toolText(t, result)), &entries); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry with limit, got %d", len(entries))
	}
}

func TestMCPResource_Sections(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpResourceSections(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("workbook://sections"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "workbook://sections" || tc.MIMEType != "application/json" {
		t.Errorf("unexpected resource metadata: %s %s", tc.URI, tc.MIMEType)
	}
	if !strings.Contains(tc.Text, `"dailyplanner"`) {
		t.Error("resource does not list dailyplanner")
	}
}

func TestNewMCPServer(t *testing.T) {
	if s := NewMCPServer(newTestMCPDeps(t)); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
