package fnmap

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/DeusData/ctu-fnmap/internal/ast"
)

// Mangler resolves the linker-level symbol of a function declaration.
type Mangler interface {
	Mangle(fn *ast.FunctionDecl) string
}

// Mapper classifies the functions of one translation unit and buffers the
// resulting records until Flush. A Mapper is used by a single goroutine.
type Mapper struct {
	cfg     Config
	tu      *ast.TranslationUnit
	mangler Mangler
	arch    string

	locator *Locator

	seen     map[string]struct{}
	defined  []DefinedRecord
	external []ExternalRecord
	defBuf   bytes.Buffer
	extBuf   bytes.Buffer

	flushed bool
}

// NewMapper validates cfg and prepares a mapper for tu.
func NewMapper(cfg Config, tu *ast.TranslationUnit, mangler Mangler) (*Mapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tu == nil {
		return nil, errors.New("fnmap: nil translation unit")
	}
	if mangler == nil {
		return nil, errors.New("fnmap: nil mangler")
	}
	return &Mapper{
		cfg:     cfg,
		tu:      tu,
		mangler: mangler,
		arch:    tu.Target.Tag(),
		seen:    map[string]struct{}{},
	}, nil
}

// Classify decides what, if anything, fn contributes to the index. A body
// anywhere on the redeclaration chain makes fn a definition, which is only
// recorded for linkages visible from other TUs. A bodyless non-builtin is an
// external reference.
func (m *Mapper) Classify(fn *ast.FunctionDecl) (Record, bool) {
	if fn == nil {
		return nil, false
	}
	if body := fn.DefinitionBody(); body != nil {
		id := Identity{Symbol: m.mangler.Mangle(fn), Arch: m.arch}
		loc := m.Locator()
		switch fn.Linkage {
		case ast.ExternalLinkage, ast.VisibleNoLinkage, ast.UniqueExternalLinkage:
		default:
			return nil, false
		}
		return DefinedRecord{
			Identity:   id,
			Locator:    loc,
			InMainFile: body.Loc.File == m.tu.MainFile,
		}, true
	}
	if fn.BuiltinID != 0 {
		return nil, false
	}
	return ExternalRecord{Identity: Identity{Symbol: m.mangler.Mangle(fn), Arch: m.arch}}, true
}

// Visit classifies fn and buffers its record. Identical lines produced by
// redeclarations of one entity are buffered once.
func (m *Mapper) Visit(fn *ast.FunctionDecl) {
	rec, ok := m.Classify(fn)
	if !ok {
		return
	}
	line := rec.Line()
	key := line
	if _, ext := rec.(ExternalRecord); ext {
		key = "e:" + line
	}
	if _, dup := m.seen[key]; dup {
		return
	}
	m.seen[key] = struct{}{}

	switch r := rec.(type) {
	case DefinedRecord:
		m.defined = append(m.defined, r)
		m.defBuf.WriteString(line)
		m.defBuf.WriteByte('\n')
	case ExternalRecord:
		m.external = append(m.external, r)
		m.extBuf.WriteString(line)
		m.extBuf.WriteByte('\n')
	}
}

// Walk visits every function declaration of the TU.
func (m *Mapper) Walk() {
	ast.Walk(m.tu.Root, m.Visit)
}

// Locator returns the artifact locator of the TU. It is computed on first
// use and cached: the main file path is made absolute and its symlinks are
// resolved.
func (m *Mapper) Locator() Locator {
	if m.locator == nil {
		loc := LocatorOf(m.tu)
		m.locator = &loc
	}
	return *m.locator
}

// LocatorOf computes the artifact locator of tu.
func LocatorOf(tu *ast.TranslationUnit) Locator {
	return Locator{Arch: tu.Target.Tag(), SourcePath: canonicalPath(tu.MainFile)}
}

func canonicalPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// Defined returns the buffered definition records in visit order.
func (m *Mapper) Defined() []DefinedRecord { return m.defined }

// External returns the buffered external records in visit order.
func (m *Mapper) External() []ExternalRecord { return m.external }

// Flush appends the buffered records to the sinks, externals first. Each
// buffer is written as one block regardless of the other's outcome. Only
// the first call writes.
func (m *Mapper) Flush(sinks Sinks) error {
	if m.flushed {
		return nil
	}
	m.flushed = true

	var errs []error
	if err := appendBlock(sinks.External, m.extBuf.Bytes()); err != nil {
		errs = append(errs, fmt.Errorf("flush %s: %w", ExternalFile, err))
	}
	if err := appendBlock(sinks.Defined, m.defBuf.Bytes()); err != nil {
		errs = append(errs, fmt.Errorf("flush %s: %w", DefinedFile, err))
	}
	slog.Debug("fnmap.flush", "main", m.tu.MainFile, "arch", m.arch,
		"defined", len(m.defined), "external", len(m.external))
	return errors.Join(errs...)
}

func appendBlock(s Sink, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if s == nil {
		return errors.New("no sink")
	}
	return s.AppendLocked(p)
}
