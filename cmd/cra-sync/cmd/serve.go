package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cra-hub/cra-sync/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server exposing the hub's outputs.

The server communicates via stdio and provides four tools:
  - latest_news: Most recent articles, optionally for one source
  - search_news: Search articles by query
  - get_article: Get a specific article by ID
  - document_manifest: The official documents manifest

Articles come from Elasticsearch when it is enabled, otherwise from the
JSON feed on disk.

Example:
  cra-sync serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	// Build MCP config from loaded configuration
	mcpConfig := mcp.Config{
		Name:         cfg.MCP.Name,
		Version:      cfg.MCP.Version,
		FeedPath:     cfg.News.JSONPath,
		DocumentsDir: cfg.Documents.Dir,
		ESEnabled:    cfg.Elasticsearch.Enabled,
		ESAddresses:  cfg.Elasticsearch.Addresses,
		ESIndex:      cfg.Elasticsearch.Index,
		ESUsername:   cfg.Elasticsearch.Username,
		ESPassword:   cfg.Elasticsearch.Password,
	}

	server, err := mcp.NewServer(mcpConfig)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
