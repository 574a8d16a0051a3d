package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeusData/ctu-fnmap/internal/build"
	"github.com/DeusData/ctu-fnmap/internal/config"
)

type buildOptions struct {
	ctuDir      string
	compileDB   string
	root        string
	threads     int
	dbPath      string
	triple      string
	includeDirs []string
	noBuiltin   bool
	skipDirs    []string
	noDB        bool
}

// BuildSummary is the JSON form of a build result.
type BuildSummary struct {
	CTUDir    string `json:"ctu_dir"`
	TUs       int    `json:"tus"`
	Failed    int    `json:"failed"`
	Reused    int    `json:"reused"`
	Defined   int    `json:"defined"`
	External  int    `json:"external"`
	Resolved  int    `json:"resolved"`
	Conflicts int    `json:"conflicts"`
}

// NewBuildCommand creates the whole-project build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Map every translation unit of a project and merge the results",
		Long: `Clear the map files of the CTU directory, then write an artifact for and
map every translation unit of the compilation database (or of the sources
found under --root), and finally merge the records into externalFnMap.txt
and the index database.

Settings default to the values in .ctuconfig of the working directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			bo := opts.resolve(cmd, config.Load(wd))
			res, err := build.Run(cmd.Context(), bo)
			if err != nil {
				return err
			}
			sum := BuildSummary{
				CTUDir: bo.CTUDir, TUs: res.TUs, Failed: res.Failed, Reused: res.Reused,
				Defined: res.Defined, External: res.External, Resolved: res.Resolved,
				Conflicts: len(res.Conflicts),
			}
			f := formatter{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return f.success(sum, func(w io.Writer) {
				fmt.Fprintf(w, "%d TU(s) mapped into %s (%d failed, %d artifacts reused)\n", sum.TUs, sum.CTUDir, sum.Failed, sum.Reused)
				fmt.Fprintf(w, "%d defined, %d external, %d resolved, %d conflict(s)\n", sum.Defined, sum.External, sum.Resolved, sum.Conflicts)
			})
		},
	}
	opts.register(cmd)
	return cmd
}

func (o *buildOptions) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&o.ctuDir, "ctu-dir", "", "CTU output directory (default "+config.DefaultCTUDir+")")
	fl.StringVarP(&o.compileDB, "compile-db", "b", "", "JSON compilation database")
	fl.StringVar(&o.root, "root", ".", "source tree walked when no compilation database is given")
	fl.IntVarP(&o.threads, "threads", "j", 0, "parallel translation units (default 1.5x CPUs)")
	fl.StringVar(&o.dbPath, "db", "", "index database (default <ctu-dir>/fnmap.db)")
	fl.BoolVar(&o.noDB, "no-db", false, "do not write the index database")
	fl.StringVar(&o.triple, "triple", "", "target triple applied to every TU")
	fl.StringSliceVarP(&o.includeDirs, "include", "I", nil, "extra include directory")
	fl.BoolVar(&o.noBuiltin, "no-builtin", false, "pass -fno-builtin to every TU")
	fl.StringSliceVar(&o.skipDirs, "skip-dir", nil, "directory pattern skipped by source discovery")
}

// resolve merges flags over the project file.
func (o *buildOptions) resolve(cmd *cobra.Command, cfg *config.Config) build.Options {
	fl := cmd.Flags()
	if fl.Changed("ctu-dir") {
		cfg.CTUDir = o.ctuDir
	}
	if fl.Changed("compile-db") {
		cfg.CompileDB = o.compileDB
	}
	if fl.Changed("threads") {
		cfg.Threads = &o.threads
	}
	if fl.Changed("db") {
		cfg.DBPath = o.dbPath
	}
	if fl.Changed("triple") {
		cfg.Triple = o.triple
	}
	if fl.Changed("no-builtin") {
		cfg.NoBuiltin = &o.noBuiltin
	}
	cfg.IncludeDirs = append(cfg.IncludeDirs, o.includeDirs...)
	cfg.SkipDirs = append(cfg.SkipDirs, o.skipDirs...)

	bo := build.Options{
		CTUDir:    cfg.EffectiveCTUDir(),
		CompileDB: cfg.CompileDB,
		Root:      o.root,
		SkipDirs:  cfg.SkipDirs,
		ExtraArgs: cfg.ExtraArgs(),
		Threads:   cfg.EffectiveThreads(),
	}
	if !o.noDB {
		bo.DBPath = cfg.EffectiveDBPath()
	}
	return bo
}
