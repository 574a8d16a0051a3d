// Package index merges the per-TU function map files into the lookup table
// a CTU analyzer consumes: which artifact holds the definition of each
// external identity.
package index

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/DeusData/ctu-fnmap/internal/fnmap"
)

// ErrConflict marks an identity defined in the main file of more than one TU.
var ErrConflict = errors.New("conflicting definitions")

// ErrArch is returned by CheckArch on a cross-architecture lookup.
var ErrArch = errors.New("architecture mismatch")

// ConflictError lists the identities with conflicting definitions.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 1 {
		c := e.Conflicts[0]
		return fmt.Sprintf("%s: %s defined in %s", ErrConflict, c.Identity, strings.Join(locatorStrings(c.Locators), ", "))
	}
	return fmt.Sprintf("%s: %d identities", ErrConflict, len(e.Conflicts))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Conflict is one identity whose body lives in several main files.
type Conflict struct {
	Identity fnmap.Identity
	Locators []fnmap.Locator
}

// Entry is the resolved definition of one identity.
type Entry struct {
	Identity   fnmap.Identity
	Locator    fnmap.Locator
	InMainFile bool
}

// Line is the externalFnMap.txt form of e.
func (e Entry) Line() string {
	return e.Identity.String() + " " + e.Locator.String() + ".ast"
}

// Index maps identities to the artifact holding their definition.
type Index struct {
	entries   map[fnmap.Identity]Entry
	conflicts []Conflict
}

// ParseDefined reads definedFns.txt records.
func ParseDefined(r io.Reader) ([]fnmap.DefinedRecord, error) {
	var out []fnmap.DefinedRecord
	err := scanLines(r, func(line string) error {
		rec, err := fnmap.ParseDefinedLine(line)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// ParseExternal reads externalFns.txt records.
func ParseExternal(r io.Reader) ([]fnmap.Identity, error) {
	var out []fnmap.Identity
	err := scanLines(r, func(line string) error {
		rec, err := fnmap.ParseExternalLine(line)
		if err != nil {
			return err
		}
		out = append(out, rec.Identity)
		return nil
	})
	return out, err
}

func scanLines(r io.Reader, fn func(string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return sc.Err()
}

// Build resolves each identity to one definition. A definition whose body
// is in the TU's main file wins over header copies. Header-only identities
// resolve to the smallest locator so the result does not depend on record
// order. Two main-file definitions in different TUs are a conflict; the
// first one read is kept.
func Build(defined []fnmap.DefinedRecord) *Index {
	ix := &Index{entries: make(map[fnmap.Identity]Entry, len(defined))}
	mains := map[fnmap.Identity][]fnmap.Locator{}
	for _, rec := range defined {
		if rec.InMainFile {
			if !containsLocator(mains[rec.Identity], rec.Locator) {
				mains[rec.Identity] = append(mains[rec.Identity], rec.Locator)
			}
		}
		cur, ok := ix.entries[rec.Identity]
		next := Entry{Identity: rec.Identity, Locator: rec.Locator, InMainFile: rec.InMainFile}
		switch {
		case !ok:
			ix.entries[rec.Identity] = next
		case cur.InMainFile:
		case rec.InMainFile:
			ix.entries[rec.Identity] = next
		case rec.Locator.String() < cur.Locator.String():
			ix.entries[rec.Identity] = next
		}
	}
	for id, locs := range mains {
		if len(locs) > 1 {
			ix.conflicts = append(ix.conflicts, Conflict{Identity: id, Locators: locs})
		}
	}
	sort.Slice(ix.conflicts, func(i, j int) bool {
		return ix.conflicts[i].Identity.String() < ix.conflicts[j].Identity.String()
	})
	return ix
}

func containsLocator(locs []fnmap.Locator, l fnmap.Locator) bool {
	for _, x := range locs {
		if x == l {
			return true
		}
	}
	return false
}

func locatorStrings(locs []fnmap.Locator) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.String()
	}
	return out
}

// Len returns the number of resolved identities.
func (ix *Index) Len() int { return len(ix.entries) }

// Lookup returns the definition of id.
func (ix *Index) Lookup(id fnmap.Identity) (Entry, bool) {
	e, ok := ix.entries[id]
	return e, ok
}

// Entries returns every resolved definition sorted by identity.
func (ix *Index) Entries() []Entry {
	out := make([]Entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.String() < out[j].Identity.String() })
	return out
}

// Conflicts returns the identities defined in several main files.
func (ix *Index) Conflicts() []Conflict { return ix.conflicts }

// Err returns a *ConflictError when the index has conflicts.
func (ix *Index) Err() error {
	if len(ix.conflicts) == 0 {
		return nil
	}
	return &ConflictError{Conflicts: ix.conflicts}
}

// ExternalMap resolves external references in order. Each identity appears
// once; references without a known definition are dropped.
func (ix *Index) ExternalMap(externals []fnmap.Identity) []Entry {
	seen := map[fnmap.Identity]bool{}
	var out []Entry
	for _, id := range externals {
		if seen[id] {
			continue
		}
		e, ok := ix.entries[id]
		if !ok {
			continue
		}
		seen[id] = true
		out = append(out, e)
	}
	return out
}

// WriteExternalMap writes entries in externalFnMap.txt format.
func WriteExternalMap(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := bw.WriteString(e.Line() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseExternalMap reads externalFnMap.txt.
func ParseExternalMap(r io.Reader) ([]Entry, error) {
	var out []Entry
	err := scanLines(r, func(line string) error {
		id, rest, ok := strings.Cut(line, " ")
		if !ok {
			return fmt.Errorf("malformed map line %q", line)
		}
		ident, err := fnmap.ParseIdentity(id)
		if err != nil {
			return err
		}
		loc, err := fnmap.ParseLocator(strings.TrimSuffix(rest, ".ast"))
		if err != nil {
			return err
		}
		out = append(out, Entry{Identity: ident, Locator: loc})
		return nil
	})
	return out, err
}

// CheckArch verifies that a definition can be imported into a TU compiled
// for consumerArch.
func CheckArch(id fnmap.Identity, consumerArch string) error {
	if id.Arch != consumerArch {
		return fmt.Errorf("%w: %s imported into %s", ErrArch, id, consumerArch)
	}
	return nil
}
