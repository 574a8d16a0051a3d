// Package artifact writes and reads the per-TU files that CTU analysis
// loads on demand: for each translation unit, the bodies of the functions
// it defines keyed by identity symbol.
package artifact

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"

	"github.com/DeusData/ctu-fnmap/internal/ast"
	"github.com/DeusData/ctu-fnmap/internal/fnmap"
)

// Version is the artifact format version.
const Version = 2

// Ext is appended to a locator to form the artifact file name.
const Ext = ".ast"

// ErrVersion is returned when loading an artifact of another format version.
var ErrVersion = errors.New("artifact: unsupported version")

// Function is one function definition of a TU.
type Function struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Linkage   string `json:"linkage"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Body      string `json:"body"`
}

// Artifact is the serialized form of one translation unit.
type Artifact struct {
	Version   int        `json:"version"`
	Arch      string     `json:"arch"`
	Source    string     `json:"source"`
	Hash      string     `json:"hash"`
	Files     []string   `json:"files"`
	Args      []string   `json:"args"`
	Functions []Function `json:"functions"`
}

// Path returns the artifact path of loc inside ctuDir.
func Path(ctuDir string, loc fnmap.Locator) string {
	return filepath.Join(ctuDir, filepath.FromSlash(loc.String())+Ext)
}

// Build collects the function bodies of tu.
func Build(tu *ast.TranslationUnit, mangler fnmap.Mangler) (*Artifact, error) {
	loc := fnmap.LocatorOf(tu)
	hash, err := TUDigest(tu)
	if err != nil {
		return nil, err
	}
	a := &Artifact{
		Version: Version,
		Arch:    loc.Arch,
		Source:  loc.SourcePath,
		Hash:    hash,
		Files:   inputs(tu),
		Args:    tu.Args,
	}
	seen := map[string]bool{}
	ast.Walk(tu.Root, func(fn *ast.FunctionDecl) {
		if fn.Body == nil {
			return
		}
		sym := mangler.Mangle(fn)
		if seen[sym] {
			return
		}
		seen[sym] = true
		a.Functions = append(a.Functions, Function{
			Symbol:    sym,
			Name:      fn.QualifiedName(),
			Linkage:   fn.Linkage.String(),
			File:      fn.Body.Loc.File,
			StartLine: fn.Loc.Line,
			EndLine:   fn.Body.EndLine,
			Body:      fn.Body.Text,
		})
	})
	return a, nil
}

// Write builds the artifact of tu and stores it under ctuDir. The file is
// replaced atomically so concurrent readers never see a partial artifact.
func Write(ctuDir string, tu *ast.TranslationUnit, mangler fnmap.Mangler) (fnmap.Locator, error) {
	loc := fnmap.LocatorOf(tu)
	a, err := Build(tu, mangler)
	if err != nil {
		return loc, err
	}
	path := Path(ctuDir, loc)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return loc, err
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return loc, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return loc, err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return loc, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return loc, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return loc, err
	}
	return loc, nil
}

// Load reads the artifact of loc from ctuDir.
func Load(ctuDir string, loc fnmap.Locator) (*Artifact, error) {
	return LoadPath(Path(ctuDir, loc))
}

// LoadPath reads an artifact file.
func LoadPath(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if a.Version != Version {
		return nil, fmt.Errorf("%s: %w %d", path, ErrVersion, a.Version)
	}
	return &a, nil
}

// Function returns the definition of symbol.
func (a *Artifact) Function(symbol string) (Function, bool) {
	for _, f := range a.Functions {
		if f.Symbol == symbol {
			return f, true
		}
	}
	return Function{}, false
}

// Stale reports whether the main file or any header it spliced in changed
// since the artifact was written.
func (a *Artifact) Stale() (bool, error) {
	files := a.Files
	if len(files) == 0 {
		files = []string{a.Source}
	}
	hash, err := Digest(files, a.Args)
	if err != nil {
		return true, err
	}
	return hash != a.Hash, nil
}

// TUDigest returns the digest of everything tu was built from.
func TUDigest(tu *ast.TranslationUnit) (string, error) {
	return Digest(inputs(tu), tu.Args)
}

func inputs(tu *ast.TranslationUnit) []string {
	if len(tu.Files) == 0 {
		return []string{tu.MainFile}
	}
	return tu.Files
}

// Digest returns the hex xxh3 digest over the compile args and the path and
// contents of each file, in order.
func Digest(files, args []string) (string, error) {
	h := xxh3.New()
	for _, arg := range args {
		io.WriteString(h, arg)
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for _, path := range files {
		io.WriteString(h, path)
		h.Write([]byte{0})
		if err := copyFile(h, path); err != nil {
			return "", fmt.Errorf("hash %s: %w", path, err)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
