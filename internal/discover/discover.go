// Package discover finds the translation units of a project, either from a
// JSON compilation database or by walking the source tree.
package discover

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/DeusData/ctu-fnmap/internal/frontend"
	"github.com/DeusData/ctu-fnmap/internal/lang"
)

// IgnoreFile lists extra directory patterns, one per line.
const IgnoreFile = ".ctuignore"

// ignorePatterns are directory names to skip during discovery.
var ignorePatterns = map[string]bool{
	".cache": true, ".ctu": true, ".git": true, ".hg": true,
	".idea": true, ".svn": true, ".tmp": true, ".vs": true,
	".vscode": true, "CMakeFiles": true, "bazel-bin": true,
	"bazel-out": true, "build": true, "node_modules": true,
	"obj": true, "out": true, "tmp": true,
}

// FileInfo represents a discovered translation unit.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // relative to repo root
	Language lang.Language // detected language
}

// Options configures file discovery.
type Options struct {
	IgnoreFile string   // path to .ctuignore file (optional)
	SkipDirs   []string // extra directory patterns to skip
}

// shouldSkipDir returns true if the directory should be skipped during discovery.
// Patterns match the base name, or the slash-separated relative path with
// ** spanning directories.
func shouldSkipDir(name, rel string, extraIgnore []string) bool {
	if ignorePatterns[name] {
		return true
	}
	for _, pattern := range extraIgnore {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); matched {
			return true
		}
	}
	return false
}

// Discover walks a repository and returns its C and C++ source files.
// Headers are not translation units and are not returned.
func Discover(ctx context.Context, repoPath string, opts *Options) ([]FileInfo, error) {
	repoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var extraIgnore []string
	if opts != nil && opts.IgnoreFile != "" {
		extraIgnore, _ = loadIgnoreFile(opts.IgnoreFile)
	} else {
		extraIgnore, _ = loadIgnoreFile(filepath.Join(repoPath, IgnoreFile))
	}
	if opts != nil {
		extraIgnore = append(extraIgnore, opts.SkipDirs...)
	}

	var files []FileInfo

	err = filepath.Walk(repoPath, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			return filepath.SkipDir
		}

		rel, _ := filepath.Rel(repoPath, path)

		if info.IsDir() {
			if path != repoPath && shouldSkipDir(info.Name(), rel, extraIgnore) {
				return filepath.SkipDir
			}
			return nil
		}

		if !lang.IsSource(path) {
			return nil
		}
		l, _ := lang.LanguageForExtension(filepath.Ext(path))
		files = append(files, FileInfo{
			Path:     path,
			RelPath:  filepath.ToSlash(rel),
			Language: l,
		})
		return nil
	})

	return files, err
}

// Jobs turns discovered files into compile jobs sharing args.
func Jobs(files []FileInfo, args []string) []frontend.Job {
	jobs := make([]frontend.Job, len(files))
	for i, f := range files {
		jobs[i] = frontend.Job{
			File:      f.Path,
			Directory: filepath.Dir(f.Path),
			Args:      append([]string(nil), args...),
			Language:  f.Language,
		}
	}
	return jobs
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
