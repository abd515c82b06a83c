package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/wissen/pkg/retrieval"
	"github.com/xhad/wissen/pkg/tool"
)

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestMCPSearch(t *testing.T) {
	search := &fakeSearcher{resp: &tool.Response{Results: []tool.Result{{
		Content:    "Mischungsverhältnis 1:50",
		Source:     "Datenblatt",
		SourceType: "pdf",
		Similarity: 0.93,
		Metadata:   map[string]interface{}{"page": float64(1)},
	}}}}
	s, err := NewMCPServer(search, nil)
	require.NoError(t, err)

	res, err := s.handleSearch(context.Background(), callRequest(tool.Name, map[string]interface{}{
		"query":         "2-Takt Öl",
		"max_results":   float64(3),
		"source_filter": "Datenblatt",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	require.Len(t, search.params, 1)
	assert.Equal(t, tool.Params{Query: "2-Takt Öl", MaxResults: 3, SourceFilter: "Datenblatt"}, search.params[0])

	var out tool.Response
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "Datenblatt", out.Results[0].Source)
	assert.Equal(t, 0.93, out.Results[0].Similarity)
}

func TestMCPSearchOptionalArguments(t *testing.T) {
	search := &fakeSearcher{resp: &tool.Response{}}
	s, err := NewMCPServer(search, nil)
	require.NoError(t, err)

	_, err = s.handleSearch(context.Background(), callRequest(tool.Name, map[string]interface{}{"query": "Öl"}))
	require.NoError(t, err)
	assert.Equal(t, tool.Params{Query: "Öl"}, search.params[0])
}

func TestMCPSearchErrors(t *testing.T) {
	t.Run("invalid query is a tool error", func(t *testing.T) {
		s, err := NewMCPServer(&fakeSearcher{err: retrieval.ErrEmptyQuery}, nil)
		require.NoError(t, err)

		res, err := s.handleSearch(context.Background(), callRequest(tool.Name, map[string]interface{}{"query": ""}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("missing arguments", func(t *testing.T) {
		s, err := NewMCPServer(&fakeSearcher{}, nil)
		require.NoError(t, err)

		var req mcp.CallToolRequest
		res, err := s.handleSearch(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("internal error", func(t *testing.T) {
		s, err := NewMCPServer(&fakeSearcher{err: errors.New("pool closed")}, nil)
		require.NoError(t, err)

		_, err = s.handleSearch(context.Background(), callRequest(tool.Name, map[string]interface{}{"query": "Öl"}))
		assert.Error(t, err)
	})
}

func TestMCPListSources(t *testing.T) {
	s, err := NewMCPServer(&fakeSearcher{sources: []string{"a.pdf", "notiz.txt"}}, nil)
	require.NoError(t, err)

	res, err := s.handleListSources(context.Background(), callRequest(listSourcesToolName, nil))
	require.NoError(t, err)

	var out struct {
		Sources []string `json:"sources"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, []string{"a.pdf", "notiz.txt"}, out.Sources)
	assert.Equal(t, 2, out.Count)
}

func TestSearchToolSchema(t *testing.T) {
	st := searchTool()
	assert.Equal(t, tool.Name, st.Name)
	assert.Equal(t, []string{"query"}, st.InputSchema.Required)
	assert.Contains(t, st.InputSchema.Properties, "max_results")
	assert.Contains(t, st.InputSchema.Properties, "source_filter")
}

func TestNewMCPServerRequiresSearch(t *testing.T) {
	_, err := NewMCPServer(nil, nil)
	assert.Error(t, err)
}
