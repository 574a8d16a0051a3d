package build

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/DeusData/ctu-fnmap/internal/fnmap"
	"github.com/DeusData/ctu-fnmap/internal/index"
	"github.com/DeusData/ctu-fnmap/internal/store"
)

// Merged is the outcome of merging the map files of a CTU directory.
type Merged struct {
	Index     *index.Index
	Externals []fnmap.Identity
	// Resolved are the externalFnMap.txt entries, in reference order.
	Resolved []index.Entry
}

// Load reads definedFns.txt and externalFns.txt from ctuDir and builds the
// index. Missing map files count as empty.
func Load(ctuDir string) (*Merged, error) {
	var defined []fnmap.DefinedRecord
	if err := readMapFile(filepath.Join(ctuDir, fnmap.DefinedFile), func(r io.Reader) (err error) {
		defined, err = index.ParseDefined(r)
		return err
	}); err != nil {
		return nil, err
	}
	var externals []fnmap.Identity
	if err := readMapFile(filepath.Join(ctuDir, fnmap.ExternalFile), func(r io.Reader) (err error) {
		externals, err = index.ParseExternal(r)
		return err
	}); err != nil {
		return nil, err
	}
	ix := index.Build(defined)
	slog.Debug("build.load", "defined", len(defined), "identities", ix.Len(), "externals", len(externals))
	return &Merged{Index: ix, Externals: externals, Resolved: ix.ExternalMap(externals)}, nil
}

// Merge loads the map files of ctuDir and rewrites externalFnMap.txt.
func Merge(ctuDir string) (*Merged, error) {
	m, err := Load(ctuDir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(ctuDir, fnmap.ExternalMapFile)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := index.WriteExternalMap(f, m.Resolved); err != nil {
		f.Close()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	slog.Info("build.merge", "identities", m.Index.Len(), "externals", len(m.Externals), "resolved", len(m.Resolved))
	return m, nil
}

// Save stores m as the index of ctuDir in the database at dbPath.
func Save(dbPath, ctuDir string, m *Merged) error {
	st, err := store.OpenPath(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.SaveIndex(ctuDir, m.Index, m.Externals)
}

func readMapFile(path string, parse func(io.Reader) error) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	if err := parse(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
