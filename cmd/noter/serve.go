package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	notermcp "github.com/gorewood/noter/internal/mcp"
)

// newServeCmd creates the serve command for running as an MCP server.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run as MCP server (stdio transport)",
		Long: `Run noter as a Model Context Protocol (MCP) server over stdio.

Configure in your agent's MCP settings:
  {
    "mcpServers": {
      "noter": {
        "command": "noter",
        "args": ["serve"]
      }
    }
  }

Available tools: resolve_template, generate_note, template_status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			server := notermcp.NewServer(buildVersion(), &notermcp.Workspace{
				Engine:   a.engine,
				Config:   a.cfg,
				Sources:  a.sources,
				NotesDir: a.notesDir,
			})
			a.logger.Debug("serving MCP on stdio", "sources", len(a.sources))
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
