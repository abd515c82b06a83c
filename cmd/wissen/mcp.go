package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/xhad/wissen/server"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server on stdio.

Exposes the search_knowledge_base and list_sources tools to MCP clients:
  {
    "mcpServers": {
      "wissen": {
        "command": "/path/to/wissen",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if app == nil || app.search == nil {
			return errors.New("search service not configured")
		}

		s, err := server.NewMCPServer(app.search, nil)
		if err != nil {
			return err
		}
		return s.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
