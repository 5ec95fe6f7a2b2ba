package main

import (
	"github.com/akolanti/docqa/internal/mcpServer"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the answer_question tool over MCP stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout.

Client configuration:
  {
    "mcpServers": {
      "docqa": {
        "command": "/path/to/docqa",
        "args": ["mcp", "--config", "/path/to/docqa.yaml"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	app, p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	return mcpServer.NewServer(p).Run(cmd.Context())
}
