package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return f.success(map[string]string{"version": rootOpts.Version}, func(w io.Writer) {
				fmt.Fprintln(w, "ctu-fnmap", rootOpts.Version)
			})
		},
	}
}
