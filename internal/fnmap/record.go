// Package fnmap builds the per-translation-unit part of the cross-TU
// function index: which functions a TU defines, where their definitions
// live, and which functions it only references.
package fnmap

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Output file names inside the CTU dir.
const (
	DefinedFile     = "definedFns.txt"
	ExternalFile    = "externalFns.txt"
	ExternalMapFile = "externalFnMap.txt"
)

// Identity is the CTU-wide name of a function: its linker symbol qualified
// by the target architecture.
type Identity struct {
	Symbol string
	Arch   string
}

func (id Identity) String() string { return id.Symbol + "@" + id.Arch }

// ParseIdentity splits "symbol@arch" at the last '@'.
func ParseIdentity(s string) (Identity, error) {
	i := strings.LastIndexByte(s, '@')
	if i <= 0 || i == len(s)-1 {
		return Identity{}, fmt.Errorf("malformed identity %q", s)
	}
	return Identity{Symbol: s[:i], Arch: s[i+1:]}, nil
}

// Locator names the serialized AST artifact of a TU relative to the CTU
// dir: ast/<arch>/<absolute source path without its leading slash>.
type Locator struct {
	Arch       string
	SourcePath string
}

func (l Locator) String() string {
	p := strings.TrimLeft(filepath.ToSlash(l.SourcePath), "/")
	return path.Join("ast", l.Arch, p)
}

// ParseLocator is the inverse of Locator.String for absolute POSIX paths.
func ParseLocator(s string) (Locator, error) {
	rest, ok := strings.CutPrefix(s, "ast/")
	if !ok {
		return Locator{}, fmt.Errorf("malformed locator %q", s)
	}
	arch, p, ok := strings.Cut(rest, "/")
	if !ok || arch == "" || p == "" {
		return Locator{}, fmt.Errorf("malformed locator %q", s)
	}
	return Locator{Arch: arch, SourcePath: "/" + p}, nil
}

// Record is one line of an output file.
type Record interface {
	// Line is the record's serialized form without the trailing newline.
	Line() string
}

// DefinedRecord states that the TU at Locator holds a body for Identity.
// InMainFile is set when the body lies in the TU's main file rather than in
// an included header.
type DefinedRecord struct {
	Identity   Identity
	Locator    Locator
	InMainFile bool
}

func (r DefinedRecord) Line() string {
	line := r.Identity.String() + " " + r.Locator.String()
	if r.InMainFile {
		return "!" + line
	}
	return line
}

// ExternalRecord states that a TU references Identity without a body.
type ExternalRecord struct {
	Identity Identity
}

func (r ExternalRecord) Line() string { return r.Identity.String() }

// ParseDefinedLine parses "[!]symbol@arch locator".
func ParseDefinedLine(line string) (DefinedRecord, error) {
	var r DefinedRecord
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		r.InMainFile = true
		line = rest
	}
	id, loc, ok := strings.Cut(line, " ")
	if !ok {
		return DefinedRecord{}, fmt.Errorf("missing locator in %q", line)
	}
	var err error
	if r.Identity, err = ParseIdentity(id); err != nil {
		return DefinedRecord{}, err
	}
	if r.Locator, err = ParseLocator(loc); err != nil {
		return DefinedRecord{}, err
	}
	return r, nil
}

// ParseExternalLine parses "symbol@arch".
func ParseExternalLine(line string) (ExternalRecord, error) {
	if strings.ContainsRune(line, ' ') {
		return ExternalRecord{}, fmt.Errorf("unexpected field in %q", line)
	}
	id, err := ParseIdentity(line)
	if err != nil {
		return ExternalRecord{}, err
	}
	return ExternalRecord{Identity: id}, nil
}
