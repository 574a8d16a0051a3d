package store

import (
	"database/sql"
	"fmt"
)

// ArtifactHash is the recorded source hash of one written artifact.
type ArtifactHash struct {
	Locator string
	Source  string
	Hash    string
}

// UpsertArtifactHash records the source hash an artifact was built from.
func (s *Store) UpsertArtifactHash(locator, source, hash string) error {
	_, err := s.q.Exec(`
		INSERT INTO artifacts (locator, source, hash) VALUES (?, ?, ?)
		ON CONFLICT(locator) DO UPDATE SET source=excluded.source, hash=excluded.hash`,
		locator, source, hash)
	return err
}

// GetArtifactHash returns the recorded hash for locator, or "" if none.
func (s *Store) GetArtifactHash(locator string) (string, error) {
	var hash string
	err := s.q.QueryRow("SELECT hash FROM artifacts WHERE locator=?", locator).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get artifact hash: %w", err)
	}
	return hash, nil
}

// GetArtifactHashes returns every recorded artifact hash keyed by locator.
func (s *Store) GetArtifactHashes() (map[string]ArtifactHash, error) {
	rows, err := s.q.Query("SELECT locator, source, hash FROM artifacts")
	if err != nil {
		return nil, fmt.Errorf("get artifact hashes: %w", err)
	}
	defer rows.Close()
	result := make(map[string]ArtifactHash)
	for rows.Next() {
		var a ArtifactHash
		if err := rows.Scan(&a.Locator, &a.Source, &a.Hash); err != nil {
			return nil, err
		}
		result[a.Locator] = a
	}
	return result, rows.Err()
}

// DeleteArtifactHash forgets one artifact.
func (s *Store) DeleteArtifactHash(locator string) error {
	_, err := s.q.Exec("DELETE FROM artifacts WHERE locator=?", locator)
	return err
}
