package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/xhad/wissen/pkg/retrieval"
	"github.com/xhad/wissen/pkg/tool"
)

const (
	// MCPServerName is the name announced to MCP clients
	MCPServerName = "wissen"
	// MCPServerVersion is the current server version
	MCPServerVersion = "1.0.0"

	listSourcesToolName = "list_sources"
)

// MCPServer exposes the knowledge base search as MCP tools over stdio.
type MCPServer struct {
	mcp    *mcpserver.MCPServer
	search Searcher
	logger *slog.Logger
}

func NewMCPServer(search Searcher, logger *slog.Logger) (*MCPServer, error) {
	if search == nil {
		return nil, errors.New("search tool required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &MCPServer{
		mcp:    mcpserver.NewMCPServer(MCPServerName, MCPServerVersion),
		search: search,
		logger: logger,
	}
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(listSourcesTool(), s.handleListSources)

	return s, nil
}

// ServeStdio blocks until stdin is closed.
func (s *MCPServer) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcp)
}

func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Suchanfrage in natürlicher Sprache",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximale Anzahl an Treffern",
					"default":     tool.DefaultMaxResults,
					"minimum":     1,
					"maximum":     tool.MaxResultsLimit,
				},
				"source_filter": map[string]interface{}{
					"type":        "string",
					"description": "Nur Treffer aus dieser Quelle liefern",
				},
			},
			Required: []string{"query"},
		},
	}
}

func listSourcesTool() mcp.Tool {
	return mcp.Tool{
		Name:        listSourcesToolName,
		Description: "Listet alle Dokumente in der Wissensdatenbank auf",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

func (s *MCPServer) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	params := tool.Params{
		Query:        getStringDefault(args, "query", ""),
		MaxResults:   getIntDefault(args, "max_results", 0),
		SourceFilter: getStringDefault(args, "source_filter", ""),
	}

	resp, err := s.search.Search(ctx, params)
	if err != nil {
		if errors.Is(err, retrieval.ErrInvalidQuery) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.logger.Error("mcp search failed", "query", params.Query, "err", err)
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return mcp.NewToolResultText(formatJSON(resp)), nil
}

func (s *MCPServer) handleListSources(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sources, err := s.search.AvailableSources(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if sources == nil {
		sources = []string{}
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})), nil
}

func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
