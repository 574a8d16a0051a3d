package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeusData/ctu-fnmap/internal/build"
	"github.com/DeusData/ctu-fnmap/internal/config"
)

type dirOptions struct {
	ctuDir string
	dbPath string
}

func (o *dirOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.ctuDir, "ctu-dir", "", "CTU directory (default from .ctuconfig, else "+config.DefaultCTUDir+")")
	cmd.Flags().StringVar(&o.dbPath, "db", "", "index database (default <ctu-dir>/fnmap.db)")
}

// resolve returns the CTU directory and database path after applying the
// project file.
func (o *dirOptions) resolve() (ctuDir, dbPath string, err error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", "", err
	}
	cfg := config.Load(wd)
	if o.ctuDir != "" {
		cfg.CTUDir = o.ctuDir
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	return cfg.EffectiveCTUDir(), cfg.EffectiveDBPath(), nil
}

type mergeOptions struct {
	dirOptions
	strict bool
	noDB   bool
}

// MergeSummary is the JSON form of a merge.
type MergeSummary struct {
	Identities int           `json:"identities"`
	Externals  int           `json:"externals"`
	Resolved   int           `json:"resolved"`
	Conflicts  []ConflictOut `json:"conflicts,omitempty"`
}

// ConflictOut is one conflicting identity.
type ConflictOut struct {
	Identity string   `json:"identity"`
	Locators []string `json:"locators"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &mergeOptions{}
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge the map files of a CTU dir into externalFnMap.txt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctuDir, dbPath, err := opts.resolve()
			if err != nil {
				return err
			}
			m, err := build.Merge(ctuDir)
			if err != nil {
				return WrapExitError(ExitCommandError, "merge", err)
			}
			if !opts.noDB {
				if err := build.Save(dbPath, ctuDir, m); err != nil {
					return fmt.Errorf("store: %w", err)
				}
			}
			sum := MergeSummary{Identities: m.Index.Len(), Externals: len(m.Externals), Resolved: len(m.Resolved)}
			for _, c := range m.Index.Conflicts() {
				out := ConflictOut{Identity: c.Identity.String()}
				for _, l := range c.Locators {
					out.Locators = append(out.Locators, l.String())
				}
				sum.Conflicts = append(sum.Conflicts, out)
			}
			f := formatter{format: rootOpts.Format, w: cmd.OutOrStdout()}
			if err := f.success(sum, func(w io.Writer) {
				fmt.Fprintf(w, "%d identities, %d of %d external references resolved\n", sum.Identities, sum.Resolved, sum.Externals)
				for _, c := range sum.Conflicts {
					fmt.Fprintf(w, "conflict: %s in %v\n", c.Identity, c.Locators)
				}
			}); err != nil {
				return err
			}
			if opts.strict {
				if err := m.Index.Err(); err != nil {
					return WrapExitError(ExitFailure, "merge", err)
				}
			}
			return nil
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail when an identity is defined in several main files")
	cmd.Flags().BoolVar(&opts.noDB, "no-db", false, "do not write the index database")
	return cmd
}
