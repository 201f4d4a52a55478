// Package thesaurus provides access to the controlled vocabularies used for
// metadata schema localization and fixed-choice field values, plus the
// label cache keyed on the vocabulary's last-modified marker.
package thesaurus

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a thesaurus identifier does not resolve.
var ErrNotFound = errors.New("thesaurus not found")

// Thesaurus describes one controlled vocabulary. A CardMax of exactly one
// makes the schema property single-valued (string-shaped); any other value
// means a resource may reference any number of its keywords (array-shaped).
type Thesaurus struct {
	ID         int64
	Identifier string
	Title      string
	CardMax    int
}

// Keyword is one vocabulary entry with its label for a requested language.
type Keyword struct {
	About string
	Label string
}

// Store provides read access to the thesaurus tables and owns the
// last-modified marker consumed by the caches.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// All returns every configured thesaurus ordered by identifier.
func (s *Store) All(ctx context.Context) ([]Thesaurus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, identifier, title, card_max FROM thesauri ORDER BY identifier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Thesaurus
	for rows.Next() {
		var t Thesaurus
		if err := rows.Scan(&t.ID, &t.Identifier, &t.Title, &t.CardMax); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// Keywords returns the entries of one thesaurus labelled for lang, falling
// back to the about-URI when no label exists for that language.
func (s *Store) Keywords(ctx context.Context, identifier, lang string) ([]Keyword, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tk.about, COALESCE(tl.label, tk.about)
		FROM thesaurus_keywords tk
		JOIN thesauri t ON t.id = tk.thesaurus_id
		LEFT JOIN thesaurus_labels tl ON tl.tkeyword_id = tk.id AND tl.lang = $2
		WHERE t.identifier = $1
		ORDER BY 2`, identifier, lang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Keyword
	for rows.Next() {
		var k Keyword
		if err := rows.Scan(&k.About, &k.Label); err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	return result, rows.Err()
}

// Labels returns the about-URI to label mapping for lang across every
// thesaurus. Entries stored under the "{lang}-ovr" pseudo-language are local
// overrides and win over the plain entries; they are applied as a second
// pass so the override always has the last word.
func (s *Store) Labels(ctx context.Context, lang string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tk.about, tl.lang, tl.label
		FROM thesaurus_keywords tk
		JOIN thesaurus_labels tl ON tl.tkeyword_id = tk.id
		WHERE tl.lang IN ($1, $1 || '-ovr')`, lang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := make(map[string]string)
	overrides := make(map[string]string)
	for rows.Next() {
		var about, rowLang, label string
		if err := rows.Scan(&about, &rowLang, &label); err != nil {
			return nil, err
		}
		if rowLang == lang {
			labels[about] = label
		} else {
			overrides[about] = label
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for about, label := range overrides {
		labels[about] = label
	}
	return labels, nil
}

// LastUpdated returns the marker bumped by every mutation of the thesaurus
// tables. The caches compare it against the marker captured at computation
// time to decide freshness.
func (s *Store) LastUpdated(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT last_modified FROM thesaurus_state WHERE id = 1`).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// Touch bumps the last-modified marker. Every write path that mutates
// thesaurus, keyword or label rows must call it so cached schemas and labels
// are rebuilt on the next read.
func (s *Store) Touch(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thesaurus_state (id, last_modified) VALUES (1, NOW())
		ON CONFLICT (id) DO UPDATE SET last_modified = EXCLUDED.last_modified`)
	return err
}
