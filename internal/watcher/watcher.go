// Package watcher polls the files a CTU build depends on and triggers a
// rebuild when any of them changes.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/DeusData/ctu-fnmap/internal/artifact"
	"github.com/DeusData/ctu-fnmap/internal/discover"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// FileSet lists the files whose changes require a rebuild.
type FileSet func(ctx context.Context) ([]string, error)

// RebuildFunc is called when a change is detected.
type RebuildFunc func(ctx context.Context) error

// Watcher polls a file set and triggers rebuilds.
type Watcher struct {
	files    FileSet
	rebuild  RebuildFunc
	snapshot map[string]fileSnapshot
	interval time.Duration
	nextPoll time.Time
}

// New creates a Watcher. rebuild is called when files change.
func New(files FileSet, rebuild RebuildFunc) *Watcher {
	return &Watcher{files: files, rebuild: rebuild}
}

// Run blocks until ctx is cancelled. Ticks at baseInterval, polling only
// when the adaptive interval has elapsed.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Now().Before(w.nextPoll) {
				continue
			}
			w.poll(ctx)
		}
	}
}

// poll captures a snapshot and compares it with the previous one.
// First poll: captures baseline without triggering a rebuild.
// Subsequent polls: triggers rebuild if any file changed.
func (w *Watcher) poll(ctx context.Context) {
	paths, err := w.files(ctx)
	if err != nil {
		slog.Warn("watcher.files", "err", err)
		w.nextPoll = time.Now().Add(max(w.interval, baseInterval))
		return
	}
	snap := captureSnapshot(paths)
	interval := pollInterval(len(snap))

	if w.snapshot == nil {
		slog.Debug("watcher.baseline", "files", len(snap))
		w.snapshot = snap
		w.interval = interval
		w.nextPoll = time.Now().Add(interval)
		return
	}

	if snapshotsEqual(w.snapshot, snap) {
		w.interval = interval
		w.nextPoll = time.Now().Add(interval)
		return
	}

	slog.Info("watcher.changed", "files", len(snap))
	if err := w.rebuild(ctx); err != nil {
		slog.Warn("watcher.rebuild", "err", err)
		// Keep old snapshot so we retry next cycle
		w.nextPoll = time.Now().Add(interval)
		return
	}

	// The rebuild may have changed the file set (new includes).
	if paths, err := w.files(ctx); err == nil {
		snap = captureSnapshot(paths)
	}
	w.snapshot = snap
	w.interval = pollInterval(len(snap))
	w.nextPoll = time.Now().Add(w.interval)
}

// captureSnapshot records mtime and size per path. Missing files are left
// out, so a deletion shows up as a change.
func captureSnapshot(paths []string) map[string]fileSnapshot {
	snap := make(map[string]fileSnapshot, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		snap[p] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return snap
}

// snapshotsEqual returns true if two snapshots have identical files with same mtime+size.
func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, aSnap := range a {
		bSnap, ok := b[path]
		if !ok {
			return false
		}
		if !aSnap.modTime.Equal(bSnap.modTime) || aSnap.size != bSnap.size {
			return false
		}
	}
	return true
}

// pollInterval computes the adaptive interval from file count.
// 1s base + 1s per 500 files, capped at 60s.
func pollInterval(fileCount int) time.Duration {
	return min(baseInterval+time.Duration(fileCount/500)*time.Second, maxInterval)
}

// ArtifactFiles lists every file recorded in the artifacts under ctuDir:
// the main files and the headers they included.
func ArtifactFiles(ctuDir string) FileSet {
	return func(ctx context.Context) ([]string, error) {
		seen := map[string]bool{}
		err := filepath.WalkDir(filepath.Join(ctuDir, "ast"), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return filepath.SkipAll
				}
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() || !strings.HasSuffix(path, artifact.Ext) {
				return nil
			}
			a, err := artifact.LoadPath(path)
			if err != nil {
				slog.Debug("watcher.artifact.err", "path", path, "err", err)
				return nil
			}
			seen[a.Source] = true
			for _, f := range a.Files {
				seen[f] = true
			}
			return nil
		})
		return sortedKeys(seen), err
	}
}

// SourceTree lists the translation units discovered under root.
func SourceTree(root string, opts *discover.Options) FileSet {
	return func(ctx context.Context) ([]string, error) {
		files, err := discover.Discover(ctx, root, opts)
		if err != nil {
			return nil, err
		}
		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.Path
		}
		return paths, nil
	}
}

// Union merges file sets.
func Union(sets ...FileSet) FileSet {
	return func(ctx context.Context) ([]string, error) {
		seen := map[string]bool{}
		for _, set := range sets {
			paths, err := set(ctx)
			if err != nil {
				return nil, err
			}
			for _, p := range paths {
				seen[p] = true
			}
		}
		return sortedKeys(seen), nil
	}
}

// Paths is a fixed file set.
func Paths(paths ...string) FileSet {
	return func(context.Context) ([]string, error) { return paths, nil }
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
