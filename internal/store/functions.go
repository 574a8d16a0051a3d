package store

import (
	"database/sql"
	"fmt"
	"regexp"

	"github.com/DeusData/ctu-fnmap/internal/fnmap"
	"github.com/DeusData/ctu-fnmap/internal/index"
)

// Function is a stored definition.
type Function struct {
	Identity   fnmap.Identity
	Locator    fnmap.Locator
	InMainFile bool
	// Referenced is true when some TU references the identity externally.
	Referenced bool
}

// Stats summarizes the stored index.
type Stats struct {
	Functions    int
	ExternalRefs int
	Resolved     int
	Conflicts    int
	CTUDir       string
	IndexedAt    string
}

// SaveIndex replaces the stored index with ix and the external references.
func (s *Store) SaveIndex(ctuDir string, ix *index.Index, externals []fnmap.Identity) error {
	return s.WithTransaction(func(tx *Store) error {
		for _, table := range []string{"functions", "external_refs", "conflicts"} {
			if _, err := tx.q.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for _, e := range ix.Entries() {
			if _, err := tx.q.Exec(`INSERT INTO functions (symbol, arch, locator, in_main_file) VALUES (?, ?, ?, ?)`,
				e.Identity.Symbol, e.Identity.Arch, e.Locator.String(), e.InMainFile); err != nil {
				return fmt.Errorf("insert function %s: %w", e.Identity, err)
			}
		}
		for _, id := range externals {
			if _, err := tx.q.Exec(`INSERT OR IGNORE INTO external_refs (symbol, arch) VALUES (?, ?)`,
				id.Symbol, id.Arch); err != nil {
				return fmt.Errorf("insert external %s: %w", id, err)
			}
		}
		for _, c := range ix.Conflicts() {
			for _, l := range c.Locators {
				if _, err := tx.q.Exec(`INSERT OR IGNORE INTO conflicts (symbol, arch, locator) VALUES (?, ?, ?)`,
					c.Identity.Symbol, c.Identity.Arch, l.String()); err != nil {
					return fmt.Errorf("insert conflict %s: %w", c.Identity, err)
				}
			}
		}
		if err := tx.setMeta("ctu_dir", ctuDir); err != nil {
			return err
		}
		return tx.setMeta("indexed_at", Now())
	})
}

func (s *Store) setMeta(key, value string) error {
	_, err := s.q.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (s *Store) meta(key string) (string, error) {
	var v string
	err := s.q.QueryRow("SELECT value FROM meta WHERE key=?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

const functionColumns = `f.symbol, f.arch, f.locator, f.in_main_file,
	EXISTS (SELECT 1 FROM external_refs r WHERE r.symbol = f.symbol AND r.arch = f.arch)`

// LookupFunction returns the definitions of symbol. An empty arch matches
// every architecture.
func (s *Store) LookupFunction(symbol, arch string) ([]Function, error) {
	query := "SELECT " + functionColumns + " FROM functions f WHERE f.symbol = ?"
	args := []any{symbol}
	if arch != "" {
		query += " AND f.arch = ?"
		args = append(args, arch)
	}
	query += " ORDER BY f.arch"
	return s.queryFunctions(query, args...)
}

// SearchFunctions returns definitions whose symbol matches pattern, a Go
// regular expression, limited to limit rows (0 means 100).
func (s *Store) SearchFunctions(pattern string, limit int) ([]Function, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	if limit <= 0 {
		limit = 100
	}
	all, err := s.queryFunctions("SELECT " + functionColumns + " FROM functions f ORDER BY f.symbol, f.arch")
	if err != nil {
		return nil, err
	}
	var out []Function
	for _, f := range all {
		if !re.MatchString(f.Identity.Symbol) {
			continue
		}
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Symbols returns the distinct defined symbols in sorted order.
func (s *Store) Symbols() ([]string, error) {
	rows, err := s.q.Query("SELECT DISTINCT symbol FROM functions ORDER BY symbol")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (s *Store) queryFunctions(query string, args ...any) ([]Function, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Function
	for rows.Next() {
		var f Function
		var loc string
		if err := rows.Scan(&f.Identity.Symbol, &f.Identity.Arch, &loc, &f.InMainFile, &f.Referenced); err != nil {
			return nil, err
		}
		if f.Locator, err = fnmap.ParseLocator(loc); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Stats counts the stored rows.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	counts := []struct {
		dst   *int
		query string
	}{
		{&st.Functions, "SELECT COUNT(*) FROM functions"},
		{&st.ExternalRefs, "SELECT COUNT(*) FROM external_refs"},
		{&st.Resolved, `SELECT COUNT(*) FROM external_refs r
			JOIN functions f ON f.symbol = r.symbol AND f.arch = r.arch`},
		{&st.Conflicts, "SELECT COUNT(DISTINCT symbol || '@' || arch) FROM conflicts"},
	}
	for _, c := range counts {
		if err := s.q.QueryRow(c.query).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
	}
	var err error
	if st.CTUDir, err = s.meta("ctu_dir"); err != nil {
		return Stats{}, err
	}
	if st.IndexedAt, err = s.meta("indexed_at"); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Conflicts returns the stored conflicts ordered by identity.
func (s *Store) Conflicts() ([]index.Conflict, error) {
	rows, err := s.q.Query("SELECT symbol, arch, locator FROM conflicts ORDER BY symbol, arch, locator")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []index.Conflict
	for rows.Next() {
		var id fnmap.Identity
		var loc string
		if err := rows.Scan(&id.Symbol, &id.Arch, &loc); err != nil {
			return nil, err
		}
		l, err := fnmap.ParseLocator(loc)
		if err != nil {
			return nil, err
		}
		if n := len(out); n > 0 && out[n-1].Identity == id {
			out[n-1].Locators = append(out[n-1].Locators, l)
			continue
		}
		out = append(out, index.Conflict{Identity: id, Locators: []fnmap.Locator{l}})
	}
	return out, rows.Err()
}
