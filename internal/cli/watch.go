package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeusData/ctu-fnmap/internal/build"
	"github.com/DeusData/ctu-fnmap/internal/config"
	"github.com/DeusData/ctu-fnmap/internal/discover"
	"github.com/DeusData/ctu-fnmap/internal/watcher"
)

// NewWatchCommand creates the rebuild-on-change command.
func NewWatchCommand(_ *RootOptions) *cobra.Command {
	opts := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild whenever a source or included header changes",
		Long: `Run a build with the same settings as the build command, then poll the
translation units and every header recorded in their artifacts. A change
triggers a fresh build; unchanged artifacts are reused. Stops on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			bo := opts.resolve(cmd, config.Load(wd))
			rebuild := func(ctx context.Context) error {
				res, err := build.Run(ctx, bo)
				if err != nil {
					return err
				}
				slog.Info("watch.built", "tus", res.TUs, "failed", res.Failed, "reused", res.Reused, "defined", res.Defined)
				return nil
			}
			if err := rebuild(cmd.Context()); err != nil {
				return err
			}
			watcher.New(watchFiles(bo), rebuild).Run(cmd.Context())
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

func watchFiles(bo build.Options) watcher.FileSet {
	artifacts := watcher.ArtifactFiles(bo.CTUDir)
	if bo.CompileDB != "" {
		return watcher.Union(watcher.Paths(bo.CompileDB), func(ctx context.Context) ([]string, error) {
			jobs, err := discover.LoadCompileDB(bo.CompileDB)
			if err != nil {
				return nil, err
			}
			paths := make([]string, len(jobs))
			for i, j := range jobs {
				paths[i] = j.File
			}
			return paths, nil
		}, artifacts)
	}
	return watcher.Union(watcher.SourceTree(bo.Root, &discover.Options{SkipDirs: bo.SkipDirs}), artifacts)
}
