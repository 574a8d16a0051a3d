package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeusData/ctu-fnmap/internal/artifact"
	"github.com/DeusData/ctu-fnmap/internal/build"
	"github.com/DeusData/ctu-fnmap/internal/fnmap"
	"github.com/DeusData/ctu-fnmap/internal/index"
	"github.com/DeusData/ctu-fnmap/internal/store"
)

type lookupOptions struct {
	dirOptions
	body bool
}

// LookupResult is the JSON form of a resolved identity.
type LookupResult struct {
	Identity   string `json:"identity"`
	Artifact   string `json:"artifact"`
	InMainFile bool   `json:"in_main_file"`
	Body       string `json:"body,omitempty"`
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &lookupOptions{}
	cmd := &cobra.Command{
		Use:   "lookup <symbol@arch>",
		Short: "Print the artifact that defines a function identity",
		Long: `Resolve an identity through the index database, or through the map files
when the database does not exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := fnmap.ParseIdentity(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "lookup", err)
			}
			ctuDir, dbPath, err := opts.resolve()
			if err != nil {
				return err
			}
			entry, err := lookup(ctuDir, dbPath, id)
			if err != nil {
				return err
			}
			res := LookupResult{
				Identity:   entry.Identity.String(),
				Artifact:   entry.Locator.String() + artifact.Ext,
				InMainFile: entry.InMainFile,
			}
			if opts.body {
				a, err := artifact.Load(ctuDir, entry.Locator)
				if err != nil {
					return fmt.Errorf("load artifact: %w", err)
				}
				fn, ok := a.Function(id.Symbol)
				if !ok {
					return WrapExitError(ExitFailure, "lookup", fmt.Errorf("%s not in %s", id.Symbol, res.Artifact))
				}
				res.Body = fn.Body
			}
			f := formatter{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return f.success(res, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s\n", res.Identity, res.Artifact)
				if res.Body != "" {
					fmt.Fprintln(w, res.Body)
				}
			})
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.body, "body", false, "also print the function body from the artifact")
	return cmd
}

func lookup(ctuDir, dbPath string, id fnmap.Identity) (index.Entry, error) {
	notFound := func(candidates []string) error {
		hint := index.FormatSuggestions(index.Suggest(id.Symbol, candidates, 3))
		return WrapExitError(ExitFailure, "lookup", fmt.Errorf("no definition of %s%s", id, hint))
	}
	if _, err := os.Stat(dbPath); err == nil {
		st, err := store.OpenPath(dbPath)
		if err != nil {
			return index.Entry{}, err
		}
		defer st.Close()
		fns, err := st.LookupFunction(id.Symbol, id.Arch)
		if err != nil {
			return index.Entry{}, err
		}
		if len(fns) == 0 {
			syms, err := st.Symbols()
			if err != nil {
				return index.Entry{}, err
			}
			return index.Entry{}, notFound(syms)
		}
		return index.Entry{Identity: fns[0].Identity, Locator: fns[0].Locator, InMainFile: fns[0].InMainFile}, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return index.Entry{}, err
	}

	m, err := build.Load(ctuDir)
	if err != nil {
		return index.Entry{}, WrapExitError(ExitCommandError, "lookup", err)
	}
	e, ok := m.Index.Lookup(id)
	if !ok {
		return index.Entry{}, notFound(m.Index.Symbols())
	}
	return e, nil
}
