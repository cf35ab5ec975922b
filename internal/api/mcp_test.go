package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/keyweave/internal/workspace"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *stubCollab) {
	t.Helper()
	sc := &stubCollab{similarity: 25}
	ws, err := workspace.New(context.Background(), workspace.Deps{
		Concepts: sc,
		Merger:   sc,
		Scorer:   sc,
		Searcher: sc,
	})
	if err != nil {
		t.Fatalf("creating workspace: %v", err)
	}
	return MCPDeps{Workspace: ws, Version: "test"}, sc
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

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), makeCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", name, err)
	}
	return result
}

// --- tests ---

func TestMCPTool_SetStory(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result := callTool(t, mcpSetStory(deps), "set_story", map[string]interface{}{"text": "Once upon a pond."})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if got := deps.Workspace.Story(); got != "Once upon a pond." {
		t.Errorf("story = %q", got)
	}

	result = callTool(t, mcpSetStory(deps), "set_story", map[string]interface{}{})
	if !result.IsError {
		t.Error("expected error without text")
	}
}

func TestMCPTool_AddKeyword(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result := callTool(t, mcpAddKeyword(deps), "add_keyword", map[string]interface{}{"keyword": "lanterns"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	kws := deps.Workspace.Keywords()
	if last := kws[len(kws)-1]; last.Label != "lanterns" || last.Provenance != workspace.ProvenanceUserAdded {
		t.Errorf("last keyword = %+v", last)
	}

	result = callTool(t, mcpAddKeyword(deps), "add_keyword", map[string]interface{}{"keyword": "  "})
	if !result.IsError {
		t.Error("expected error for a blank keyword")
	}
}

func TestMCPTool_OpenAndCloseKeyword(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result := callTool(t, mcpOpenKeyword(deps), "open_keyword", map[string]interface{}{"keyword": "ducks"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var st workspace.KeywordState
	if err := json.Unmarshal([]byte(toolText(t, result)), &st); err != nil {
		t.Fatalf("parsing state: %v", err)
	}
	if !st.TooltipOpen || st.Detail != "about ducks" {
		t.Errorf("state = %+v", st)
	}

	// Opening an open keyword leaves it open.
	callTool(t, mcpOpenKeyword(deps), "open_keyword", map[string]interface{}{"keyword": "ducks"})
	if st, _ := deps.Workspace.KeywordState("ducks"); !st.TooltipOpen {
		t.Error("second open closed the tooltip")
	}

	for range 2 {
		result = callTool(t, mcpCloseKeyword(deps), "close_keyword", map[string]interface{}{"keyword": "ducks"})
		if result.IsError {
			t.Fatalf("unexpected error: %s", toolText(t, result))
		}
		if st, _ := deps.Workspace.KeywordState("ducks"); st.TooltipOpen {
			t.Error("tooltip still open after close")
		}
	}

	result = callTool(t, mcpOpenKeyword(deps), "open_keyword", map[string]interface{}{"keyword": "unicorns"})
	if !result.IsError {
		t.Error("expected error for an unlisted keyword")
	}
}

func TestMCPTool_InsertKeyword(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result := callTool(t, mcpInsertKeyword(deps), "insert_keyword", map[string]interface{}{"keyword": "halloween"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	want := workspace.DefaultStory + " about halloween"
	if got := toolText(t, result); got != want {
		t.Errorf("story = %q, want %q", got, want)
	}
	if c := deps.Workspace.Completed(); len(c) != 1 || c[0] != "halloween" {
		t.Errorf("completed = %v", c)
	}
}

func TestMCPTool_InsertKeyword_AfterEdit(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	ctx := context.Background()

	if _, err := deps.Workspace.Toggle(ctx, "ducks"); err != nil {
		t.Fatal(err)
	}
	deps.Workspace.SetStory(ctx, "Edited.")

	result := callTool(t, mcpInsertKeyword(deps), "insert_keyword", map[string]interface{}{"keyword": "ducks"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "Edited. about ducks" {
		t.Errorf("story = %q", got)
	}

	result = callTool(t, mcpInsertKeyword(deps), "insert_keyword", map[string]interface{}{"keyword": "ducks"})
	if result.IsError {
		t.Fatalf("second insert: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "Edited. about ducks about ducks" {
		t.Errorf("story after second insert = %q", got)
	}
}

func TestMCPTool_InsertKeyword_MergeFailure(t *testing.T) {
	deps, sc := newTestMCPDeps(t)
	sc.mergeErr = context.DeadlineExceeded

	result := callTool(t, mcpInsertKeyword(deps), "insert_keyword", map[string]interface{}{"keyword": "ducks"})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(toolText(t, result), "insert failed") {
		t.Errorf("text = %q", toolText(t, result))
	}
	if deps.Workspace.Story() != workspace.DefaultStory {
		t.Error("story changed after a failed insert")
	}
}

func TestMCPTool_CheckDiversity(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result := callTool(t, mcpCheckDiversity(deps), "check_diversity", nil)
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var reading workspace.GaugeReading
	if err := json.Unmarshal([]byte(toolText(t, result)), &reading); err != nil {
		t.Fatalf("parsing reading: %v", err)
	}
	if reading.Value != 75 {
		t.Errorf("value = %v, want 75", reading.Value)
	}
}

func TestMCPTool_SearchKeywords(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result := callTool(t, mcpSearchKeywords(deps), "search_keywords", map[string]interface{}{"query": "halloween"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != `["pumpkin","costume"]` {
		t.Errorf("result = %s", got)
	}

	result = callTool(t, mcpSearchKeywords(deps), "search_keywords", map[string]interface{}{"query": " "})
	if !result.IsError {
		t.Error("expected error for a blank query")
	}
}

func TestMCPResource_Story(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Workspace.SetStory(context.Background(), "The ducks returned.")

	contents, err := mcpResourceStory(deps)(context.Background(), makeReadResourceRequest("story://current"))
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
	if tc.Text != "The ducks returned." || tc.MIMEType != "text/plain" {
		t.Errorf("contents = %+v", tc)
	}
}

func TestMCPResource_Snapshot(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	contents, err := mcpResourceSnapshot(deps)(context.Background(), makeReadResourceRequest("workspace://snapshot"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc := contents[0].(mcp.TextResourceContents)
	var snap workspace.Snapshot
	if err := json.Unmarshal([]byte(tc.Text), &snap); err != nil {
		t.Fatalf("parsing snapshot: %v", err)
	}
	if snap.Story != workspace.DefaultStory || len(snap.Keywords) != len(workspace.DefaultKeywords) {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if NewMCPServer(deps) == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
