// Package build drives a whole-project CTU preparation: it writes one
// artifact per translation unit, maps every unit in parallel into the
// shared map files and merges them into externalFnMap.txt and the index
// database.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeusData/ctu-fnmap/internal/artifact"
	"github.com/DeusData/ctu-fnmap/internal/discover"
	"github.com/DeusData/ctu-fnmap/internal/fnmap"
	"github.com/DeusData/ctu-fnmap/internal/frontend"
	"github.com/DeusData/ctu-fnmap/internal/index"
	"github.com/DeusData/ctu-fnmap/internal/mangle"
	"github.com/DeusData/ctu-fnmap/internal/store"
)

// Options configures one build.
type Options struct {
	// CTUDir receives every output. Required.
	CTUDir string
	// Jobs, when set, are built as given.
	Jobs []frontend.Job
	// CompileDB is read when Jobs is empty.
	CompileDB string
	// Root is walked for sources when neither Jobs nor CompileDB is set.
	Root     string
	SkipDirs []string
	// ExtraArgs are appended to every job.
	ExtraArgs []string
	// Threads bounds the TUs processed at once (at least 1).
	Threads int
	// DBPath, when set, receives the merged index and artifact hashes.
	DBPath string
}

// Result summarizes a build.
type Result struct {
	// TUs counts the mapped translation units.
	TUs int
	// Failed counts the jobs skipped because they could not be parsed.
	Failed int
	// Reused counts artifacts left in place because their source is unchanged.
	Reused    int
	Defined   int
	External  int
	Resolved  int
	Conflicts []index.Conflict
}

type tuResult struct {
	stats  fnmap.Stats
	loc    fnmap.Locator
	hash   string
	reused bool
	ok     bool
}

// Run builds every job of opts.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.CTUDir == "" {
		return Result{}, errors.New("build: empty CTU directory")
	}
	start := time.Now()

	jobs, err := loadJobs(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	slog.Info("build.start", "ctu_dir", opts.CTUDir, "jobs", len(jobs))

	if err := os.MkdirAll(opts.CTUDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("mkdir ctu dir: %w", err)
	}
	if err := clearOutputs(opts.CTUDir); err != nil {
		return Result{}, err
	}

	var st *store.Store
	hashes := map[string]store.ArtifactHash{}
	if opts.DBPath != "" {
		if st, err = store.OpenPath(opts.DBPath); err != nil {
			return Result{}, err
		}
		defer st.Close()
		if hashes, err = st.GetArtifactHashes(); err != nil {
			return Result{}, err
		}
	}

	t := time.Now()
	results, err := mapAll(ctx, opts, jobs, hashes)
	if err != nil {
		return Result{}, err
	}
	slog.Info("pass.timing", "pass", "map", "elapsed", time.Since(t))

	var res Result
	for _, r := range results {
		if !r.ok {
			res.Failed++
			continue
		}
		res.TUs++
		res.Defined += r.stats.Defined
		res.External += r.stats.External
		if r.reused {
			res.Reused++
		}
	}

	t = time.Now()
	m, err := Merge(opts.CTUDir)
	if err != nil {
		return res, err
	}
	res.Resolved = len(m.Resolved)
	res.Conflicts = m.Index.Conflicts()
	for _, c := range res.Conflicts {
		slog.Warn("build.conflict", "identity", c.Identity.String(), "locators", len(c.Locators))
	}
	slog.Info("pass.timing", "pass", "merge", "elapsed", time.Since(t))

	if st != nil {
		if err := saveStore(st, opts.CTUDir, results, m); err != nil {
			return res, fmt.Errorf("store: %w", err)
		}
	}

	slog.Info("build.done", "tus", res.TUs, "failed", res.Failed, "reused", res.Reused,
		"defined", res.Defined, "external", res.External, "resolved", res.Resolved,
		"conflicts", len(res.Conflicts), "elapsed", time.Since(start))
	return res, nil
}

func loadJobs(ctx context.Context, opts Options) ([]frontend.Job, error) {
	var jobs []frontend.Job
	switch {
	case len(opts.Jobs) > 0:
		jobs = append(jobs, opts.Jobs...)
	case opts.CompileDB != "":
		var err error
		if jobs, err = discover.LoadCompileDB(opts.CompileDB); err != nil {
			return nil, fmt.Errorf("compile db: %w", err)
		}
	default:
		root := opts.Root
		if root == "" {
			root = "."
		}
		files, err := discover.Discover(ctx, root, &discover.Options{SkipDirs: opts.SkipDirs})
		if err != nil {
			return nil, fmt.Errorf("discover: %w", err)
		}
		jobs = discover.Jobs(files, nil)
	}
	if len(opts.ExtraArgs) > 0 {
		for i := range jobs {
			jobs[i].Args = append(append([]string(nil), jobs[i].Args...), opts.ExtraArgs...)
		}
	}
	return jobs, nil
}

// clearOutputs removes the map files of a previous build. Mapping appends.
func clearOutputs(ctuDir string) error {
	for _, name := range []string{fnmap.DefinedFile, fnmap.ExternalFile, fnmap.ExternalMapFile} {
		if err := os.Remove(filepath.Join(ctuDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	return nil
}

// mapAll parses each job once, writes its artifact unless the recorded
// source hash is unchanged, and maps it. Parse failures are logged and
// skipped. Write failures abort the build.
func mapAll(ctx context.Context, opts Options, jobs []frontend.Job, hashes map[string]store.ArtifactHash) ([]tuResult, error) {
	results := make([]tuResult, len(jobs))
	sinks := fnmap.FileSinks(opts.CTUDir)
	cfg := fnmap.Config{CTUDir: opts.CTUDir}
	mangler := mangle.Itanium{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Threads))
	for i, job := range jobs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			tu, err := frontend.Parse(gctx, job)
			if err != nil {
				slog.Warn("build.parse.err", "file", job.File, "err", err)
				return nil
			}
			r := tuResult{loc: fnmap.LocatorOf(tu)}
			if r.hash, err = artifact.TUDigest(tu); err != nil {
				return err
			}
			r.reused = upToDate(opts.CTUDir, r.loc, r.hash, hashes)
			if !r.reused {
				if _, err := artifact.Write(opts.CTUDir, tu, mangler); err != nil {
					return fmt.Errorf("artifact %s: %w", tu.MainFile, err)
				}
			}
			if r.stats, err = fnmap.Run(gctx, cfg, tu, mangler, sinks); err != nil {
				return fmt.Errorf("map %s: %w", tu.MainFile, err)
			}
			r.ok = true
			results[i] = r
			slog.Debug("build.tu", "file", tu.MainFile, "defined", r.stats.Defined,
				"external", r.stats.External, "reused", r.reused)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func upToDate(ctuDir string, loc fnmap.Locator, hash string, hashes map[string]store.ArtifactHash) bool {
	prev, ok := hashes[loc.String()]
	if !ok || prev.Hash != hash {
		return false
	}
	_, err := os.Stat(artifact.Path(ctuDir, loc))
	return err == nil
}

func saveStore(st *store.Store, ctuDir string, results []tuResult, m *Merged) error {
	err := st.WithTransaction(func(tx *store.Store) error {
		for _, r := range results {
			if !r.ok {
				continue
			}
			if err := tx.UpsertArtifactHash(r.loc.String(), r.loc.SourcePath, r.hash); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return st.SaveIndex(ctuDir, m.Index, m.Externals)
}
