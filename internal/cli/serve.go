package cli

import (
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/DeusData/ctu-fnmap/internal/store"
	"github.com/DeusData/ctu-fnmap/internal/tools"
)

// NewServeCommand creates the MCP query server command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &dirOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctuDir, dbPath, err := opts.resolve()
			if err != nil {
				return err
			}
			st, err := store.OpenPath(dbPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "store open", err)
			}
			defer st.Close()

			tools.Version = rootOpts.Version
			srv := tools.NewServer(st, ctuDir)
			slog.Info("serve.start", "ctu_dir", ctuDir, "db", dbPath)
			return srv.MCPServer().Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
	opts.addFlags(cmd)
	return cmd
}
