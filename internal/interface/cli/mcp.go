package cli

import (
	"fmt"

	"github.com/neilberkman/devlog/cmd/devlog/mcp"
	"github.com/neilberkman/devlog/internal/core/store"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server for assistant integration",
	Long: `Start an MCP (Model Context Protocol) server that lets an assistant
search your recorded sessions and add notes to the active one.

Configure in your client's MCP config:
  {
    "mcpServers": {
      "devlog": {
        "command": "devlog",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	database, err := openIndex()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	files, err := store.NewFileStore(cfg.SessionsDir)
	if err != nil {
		return err
	}

	if err := mcp.NewServer(database, files, openBackend).Serve(versionInfo); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
