package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/keyweave/internal/workspace"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Workspace *workspace.Workspace
	Version   string
}

// NewMCPServer creates an MCP server exposing the workspace as tools and resources.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"keyweave",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("keyweave: weave keyword concepts into a story and track how far it drifts from the last checkpoint."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("set_story",
			mcp.WithDescription("Replace the current story text."),
			mcp.WithString("text", mcp.Description("The new story text"), mcp.Required()),
		),
		mcpSetStory(deps),
	)

	s.AddTool(
		mcp.NewTool("add_keyword",
			mcp.WithDescription("Append a keyword to the keyword panel."),
			mcp.WithString("keyword", mcp.Description("Keyword to add"), mcp.Required()),
		),
		mcpAddKeyword(deps),
	)

	s.AddTool(
		mcp.NewTool("open_keyword",
			mcp.WithDescription("Open a keyword's tooltip and return its concept detail, generating it for the current story when needed."),
			mcp.WithString("keyword", mcp.Description("A listed keyword"), mcp.Required()),
		),
		mcpOpenKeyword(deps),
	)

	s.AddTool(
		mcp.NewTool("close_keyword",
			mcp.WithDescription("Close a keyword's tooltip. The concept detail stays cached."),
			mcp.WithString("keyword", mcp.Description("A listed keyword"), mcp.Required()),
		),
		mcpCloseKeyword(deps),
	)

	s.AddTool(
		mcp.NewTool("insert_keyword",
			mcp.WithDescription("Merge a keyword's concept detail into the story and return the new story. Opens the keyword first if needed."),
			mcp.WithString("keyword", mcp.Description("A listed keyword"), mcp.Required()),
		),
		mcpInsertKeyword(deps),
	)

	s.AddTool(
		mcp.NewTool("check_diversity",
			mcp.WithDescription("Score how much the story changed since the last check (0-100) and make the current text the new checkpoint."),
		),
		mcpCheckDiversity(deps),
	)

	s.AddTool(
		mcp.NewTool("search_keywords",
			mcp.WithDescription("Replace the keyword panel with keywords found for a query."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
		),
		mcpSearchKeywords(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"story://current",
			"Current Story",
			mcp.WithResourceDescription("The current story text"),
			mcp.WithMIMEType("text/plain"),
		),
		mcpResourceStory(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"workspace://snapshot",
			"Workspace Snapshot",
			mcp.WithResourceDescription("Story, keywords, gauge and search state as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSnapshot(deps),
	)

	return s
}

func mcpSetStory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		deps.Workspace.SetStory(ctx, text)
		return mcpText("Story updated"), nil
	}
}

func mcpAddKeyword(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		label, err := req.RequireString("keyword")
		if err != nil {
			return mcpError("keyword is required"), nil
		}
		k, err := deps.Workspace.AddKeyword(label)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add keyword: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Added %s", k.Label)), nil
	}
}

func mcpOpenKeyword(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		label, err := req.RequireString("keyword")
		if err != nil {
			return mcpError("keyword is required"), nil
		}
		st, err := deps.Workspace.Open(ctx, label)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to open %s: %v", label, err)), nil
		}
		return mcpJSON(st)
	}
}

func mcpCloseKeyword(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		label, err := req.RequireString("keyword")
		if err != nil {
			return mcpError("keyword is required"), nil
		}
		st, err := deps.Workspace.KeywordState(label)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to close %s: %v", label, err)), nil
		}
		if st.TooltipOpen {
			if _, err := deps.Workspace.Toggle(ctx, label); err != nil {
				return mcpError(fmt.Sprintf("failed to close %s: %v", label, err)), nil
			}
		}
		return mcpText(fmt.Sprintf("Closed %s", label)), nil
	}
}

func mcpInsertKeyword(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		label, err := req.RequireString("keyword")
		if err != nil {
			return mcpError("keyword is required"), nil
		}
		st, err := deps.Workspace.Open(ctx, label)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to open %s: %v", label, err)), nil
		}
		if st.Detail == workspace.FailedDetail {
			return mcpError(fmt.Sprintf("no concept detail for %s: %s", label, workspace.FailedDetail)), nil
		}
		if err := deps.Workspace.Insert(ctx, label); err != nil {
			if errors.Is(err, workspace.ErrMergeInFlight) {
				return mcpError("another insert is in progress, try again shortly"), nil
			}
			return mcpError(fmt.Sprintf("insert failed: %v", err)), nil
		}
		return mcpText(deps.Workspace.Story()), nil
	}
}

func mcpCheckDiversity(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reading, err := deps.Workspace.CheckDiversity(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("diversity check failed: %v", err)), nil
		}
		return mcpJSON(reading)
	}
}

func mcpSearchKeywords(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		keywords, err := deps.Workspace.Search(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		labels := make([]string, len(keywords))
		for i, k := range keywords {
			labels[i] = k.Label
		}
		return mcpJSON(labels)
	}
}

func mcpResourceStory(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     deps.Workspace.Story(),
			},
		}, nil
	}
}

func mcpResourceSnapshot(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Workspace.Snapshot())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
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

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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
