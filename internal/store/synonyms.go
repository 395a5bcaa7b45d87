package store

import (
	"context"
	"fmt"
)

// Synonym is one learned substitution.
type Synonym struct {
	Seq         int64  `json:"seq"`
	Word        string `json:"word"`
	Replacement string `json:"replacement"`
	RunID       string `json:"run_id,omitempty"`
}

// PutSynonym records word -> replacement unless word is already known.
//
// Returns the replacement stored after the call and whether this call
// inserted it. Uses ON CONFLICT(word) DO NOTHING, so the first writer wins
// across runs just as it does within the in-memory cache.
func (s *Store) PutSynonym(ctx context.Context, runID, word, replacement string) (stored string, inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("put synonym: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO synonyms (word, replacement, run_id)
		VALUES (?, ?, ?)
		ON CONFLICT(word) DO NOTHING
	`, word, replacement, runID)
	if err != nil {
		return "", false, fmt.Errorf("put synonym: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("put synonym: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		stored, inserted = replacement, true
	} else {
		err = tx.QueryRowContext(ctx, `
			SELECT replacement FROM synonyms WHERE word = ?
		`, word).Scan(&stored)
		if err != nil {
			return "", false, fmt.Errorf("put synonym: select existing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("put synonym: commit: %w", err)
	}
	return stored, inserted, nil
}

// LoadSynonyms returns every learned substitution ordered by seq.
//
// Returns an empty slice (not nil) when nothing has been learned.
func (s *Store) LoadSynonyms(ctx context.Context) ([]Synonym, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, word, replacement, run_id
		FROM synonyms
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query synonyms: %w", err)
	}
	defer rows.Close()

	synonyms := []Synonym{}
	for rows.Next() {
		var syn Synonym
		if err := rows.Scan(&syn.Seq, &syn.Word, &syn.Replacement, &syn.RunID); err != nil {
			return nil, fmt.Errorf("scan synonym: %w", err)
		}
		synonyms = append(synonyms, syn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate synonyms: %w", err)
	}
	return synonyms, nil
}

// CountSynonyms returns the number of learned substitutions.
func (s *Store) CountSynonyms(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM synonyms`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count synonyms: %w", err)
	}
	return n, nil
}

// Journal records substitutions learned by one run.
// Implements resolver.Journal.
//
// Thread-safety: safe for concurrent use; writes are serialized by the
// store's single connection.
type Journal struct {
	store *Store
	runID string
}

// Journal returns a Journal attributing new substitutions to runID.
func (s *Store) Journal(runID string) *Journal {
	return &Journal{store: s, runID: runID}
}

// RecordSynonym stores word -> replacement if word is not yet known.
func (j *Journal) RecordSynonym(ctx context.Context, word, replacement string) error {
	_, _, err := j.store.PutSynonym(ctx, j.runID, word, replacement)
	return err
}
