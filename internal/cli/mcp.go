package cli

import (
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/mcpserver"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/service"
)

func newMCPCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "mcp <index>",
		Short: "Serve an index to an MCP client over stdio",
		Long: `mcp starts a Model Context Protocol server on stdin/stdout exposing the
search_docs and get_document tools for the given index.

Client configuration:
  {
    "mcpServers": {
      "docs": {
        "command": "/path/to/docsearch",
        "args": ["mcp", "/path/to/book/searchindex.js"]
      }
    }
  }`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, cmd, args[0], nil)
			if err != nil {
				return err
			}
			if watch {
				go store.Watch(ctx)
			}
			srv, err := mcpserver.New(service.New(service.Options{Store: store}), nil)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the index when the file changes")
	return cmd
}
