// Package frontend turns a compile command into the resolved declaration
// tree of its translation unit.
//
// Sources are parsed with tree-sitter. Quoted and resolvable angle includes
// are spliced in place, each file once, so definitions coming from headers
// keep their header location. Conditional blocks contribute their first
// branch only. Macros are not expanded.
package frontend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/ctu-fnmap/internal/ast"
	"github.com/DeusData/ctu-fnmap/internal/lang"
	"github.com/DeusData/ctu-fnmap/internal/parser"
)

// Job is one compile command.
type Job struct {
	// File is the main source file, absolute or relative to Directory.
	File string
	// Directory is the working directory of the compile.
	Directory string
	// Args are the compiler arguments, without the compiler and the file.
	Args []string
	// Language overrides detection from "-x" and the file extension.
	Language lang.Language
}

// Parse builds the translation unit of job.
func Parse(ctx context.Context, job Job) (*ast.TranslationUnit, error) {
	s := parseSettings(job)
	path := job.File
	if !filepath.IsAbs(path) && job.Directory != "" {
		path = filepath.Join(job.Directory, path)
	}
	main, err := canonical(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", job.File, err)
	}
	src, err := os.ReadFile(main)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", main, err)
	}
	return build(ctx, s, main, src)
}

// ParseSource builds a translation unit from in-memory source, as if it were
// the file at path. Includes are resolved against the file system.
func ParseSource(ctx context.Context, path string, src []byte, args ...string) (*ast.TranslationUnit, error) {
	return build(ctx, parseSettings(Job{File: path, Args: args}), path, src)
}

func build(ctx context.Context, s settings, main string, src []byte) (*ast.TranslationUnit, error) {
	b := newBuilder(ctx, s)
	root := b.rootScope()
	if err := b.parseFile(main, src, root); err != nil {
		return nil, err
	}
	slog.Debug("frontend.parse", "file", main, "lang", s.language,
		"arch", b.info.Tag(), "files", len(b.files), "functions", b.functions)
	return &ast.TranslationUnit{
		MainFile: main,
		Language: s.language,
		Target:   b.info,
		Root:     &ast.TranslationUnitDecl{Children: root.decls},
		Files:    b.files,
		Args:     s.args,
	}, nil
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// parseFile parses one file and appends its declarations to sc.
func (b *builder) parseFile(path string, src []byte, sc *scope) error {
	if b.included[path] {
		return nil
	}
	b.included[path] = true
	b.files = append(b.files, path)

	tree, err := parser.Parse(b.settings.language, src)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	prev := b.file
	b.file = &fileState{path: path, dir: filepath.Dir(path), src: src}
	defer func() { b.file = prev }()

	return b.items(tree.RootNode(), sc)
}

// include splices the file named by a preproc_include node into sc.
func (b *builder) include(node *tree_sitter.Node, sc *scope) error {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		return nil
	}
	raw := parser.NodeText(pathNode, b.file.src)
	if len(raw) < 2 {
		return nil
	}
	name := raw[1 : len(raw)-1]
	quoted := pathNode.Kind() == "string_literal"

	resolved, ok := b.resolveInclude(name, quoted)
	if !ok {
		slog.Debug("frontend.include.unresolved", "file", b.file.path, "include", raw)
		return nil
	}
	if b.included[resolved] {
		return nil
	}
	src, err := os.ReadFile(resolved)
	if err != nil {
		slog.Warn("frontend.include.err", "file", resolved, "err", err)
		return nil
	}
	return b.parseFile(resolved, src, sc)
}

// resolveInclude searches the includer's directory (quoted form only), then
// -iquote (quoted form only), -I and -isystem directories.
func (b *builder) resolveInclude(name string, quoted bool) (string, bool) {
	if filepath.IsAbs(name) {
		return existing(name)
	}
	var dirs []string
	if quoted {
		dirs = append(dirs, b.file.dir)
		dirs = append(dirs, b.settings.quoteDirs...)
	}
	dirs = append(dirs, b.settings.includeDirs...)
	dirs = append(dirs, b.settings.systemDirs...)
	for _, d := range dirs {
		if p, ok := existing(filepath.Join(d, name)); ok {
			return p, true
		}
	}
	return "", false
}

func existing(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	p, err := canonical(path)
	if err != nil {
		return "", false
	}
	return p, true
}
