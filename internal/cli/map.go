package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/DeusData/ctu-fnmap/internal/artifact"
	"github.com/DeusData/ctu-fnmap/internal/fnmap"
	"github.com/DeusData/ctu-fnmap/internal/frontend"
	"github.com/DeusData/ctu-fnmap/internal/mangle"
)

type mapOptions struct {
	ctuDir    fnmap.CTUDirFlag
	directory string
	artifacts bool
}

// MapSummary is the result of one map invocation.
type MapSummary struct {
	Sources  int `json:"sources"`
	Failed   int `json:"failed"`
	Defined  int `json:"defined"`
	External int `json:"external"`
}

// NewMapCommand creates the per-TU map command.
func NewMapCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &mapOptions{}
	cmd := &cobra.Command{
		Use:   "map --ctu-dir DIR <source>... [-- <compile args>]",
		Short: "Append the function records of translation units to the CTU dir",
		Long: `Parse each source with the given compile arguments and append its records
to definedFns.txt and externalFns.txt in the CTU directory. Many map
processes may run at once against the same directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, compileArgs := splitAtDash(cmd, args)
			if len(sources) == 0 {
				return WrapExitError(ExitCommandError, "map", errors.New("no source files"))
			}
			cfg, err := opts.ctuDir.Config()
			if err != nil {
				return WrapExitError(ExitCommandError, "map", err)
			}
			sum, err := runMap(cmd, cfg, opts, sources, compileArgs)
			if err != nil {
				return err
			}
			f := formatter{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return f.success(sum, func(w io.Writer) {
				fmt.Fprintf(w, "mapped %d source(s): %d defined, %d external, %d failed\n",
					sum.Sources-sum.Failed, sum.Defined, sum.External, sum.Failed)
			})
		},
	}
	cmd.Flags().Var(&opts.ctuDir, "ctu-dir", "CTU directory receiving the map files (exactly once)")
	cmd.Flags().Var(&opts.ctuDir, "xtu-dir", "alias of --ctu-dir")
	_ = cmd.Flags().MarkHidden("xtu-dir")
	cmd.Flags().StringVar(&opts.directory, "directory", "", "working directory of the compile")
	cmd.Flags().BoolVar(&opts.artifacts, "artifacts", false, "also write the TU artifacts")
	return cmd
}

// splitAtDash separates positional args from the arguments after "--".
func splitAtDash(cmd *cobra.Command, args []string) (before, after []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

// runMap maps every source in order. A source that cannot be parsed is
// reported and skipped; a write failure stops the run.
func runMap(cmd *cobra.Command, cfg fnmap.Config, opts *mapOptions, sources, compileArgs []string) (MapSummary, error) {
	ctx := cmd.Context()
	sinks := fnmap.FileSinks(cfg.CTUDir)
	mangler := mangle.Itanium{}
	sum := MapSummary{Sources: len(sources)}
	var parseErrs *multierror.Error
	for _, src := range sources {
		job := frontend.Job{File: src, Directory: opts.directory, Args: compileArgs}
		tu, err := frontend.Parse(ctx, job)
		if err != nil {
			slog.Warn("map.parse.err", "file", src, "err", err)
			parseErrs = multierror.Append(parseErrs, fmt.Errorf("%s: %w", src, err))
			sum.Failed++
			continue
		}
		if opts.artifacts {
			if _, err := artifact.Write(cfg.CTUDir, tu, mangler); err != nil {
				return sum, fmt.Errorf("artifact %s: %w", src, err)
			}
		}
		stats, err := fnmap.Run(ctx, cfg, tu, mangler, sinks)
		if err != nil {
			return sum, fmt.Errorf("map %s: %w", src, err)
		}
		sum.Defined += stats.Defined
		sum.External += stats.External
	}
	if err := parseErrs.ErrorOrNil(); err != nil {
		return sum, WrapExitError(ExitFailure, fmt.Sprintf("%d source(s) failed", len(parseErrs.Errors)), err)
	}
	return sum, nil
}
