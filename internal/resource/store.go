package resource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a resource id or uuid does not resolve.
var ErrNotFound = errors.New("resource not found")

const resourceColumns = `id, uuid, kind, owner_id, group_id, title, abstract, purpose,
	language, date, date_type, edition, attribution, doi, license, restrictions,
	created, updated`

// Store provides access to the resource table and its metadata side tables.
// All replace-style operations have full-set semantics: the supplied set
// becomes authoritative for the relation and anything else is removed.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for collaborators that compose their own
// queries against resource primary keys (e.g. the search filter).
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) scanResource(row *sql.Row) (*Resource, error) {
	var r Resource
	var uid string
	err := row.Scan(&r.ID, &uid, &r.Kind, &r.OwnerID, &r.GroupID, &r.Title, &r.Abstract,
		&r.Purpose, &r.Language, &r.Date, &r.DateType, &r.Edition, &r.Attribution,
		&r.DOI, &r.License, &r.Restrictions, &r.Created, &r.Updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.UUID, err = uuid.Parse(uid)
	if err != nil {
		return nil, fmt.Errorf("invalid uuid for resource %d: %w", r.ID, err)
	}
	return &r, nil
}

// Get loads a resource by primary key.
func (s *Store) Get(ctx context.Context, id int64) (*Resource, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id)
	return s.scanResource(row)
}

// GetByUUID loads a resource by its public uuid.
func (s *Store) GetByUUID(ctx context.Context, uid uuid.UUID) (*Resource, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE uuid = $1`, uid.String())
	return s.scanResource(row)
}

// ListIDs returns all resource primary keys ordered by id. Used by the
// reindex command to walk the full catalog.
func (s *Store) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Save writes the column-backed fields of a resource back to its row.
func (s *Store) Save(ctx context.Context, r *Resource) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE resources SET owner_id = $1, group_id = $2, title = $3, abstract = $4,
			purpose = $5, language = $6, date = $7, date_type = $8, edition = $9,
			attribution = $10, doi = $11, license = $12, restrictions = $13,
			updated = NOW()
		WHERE id = $14`,
		r.OwnerID, r.GroupID, r.Title, r.Abstract, r.Purpose, r.Language, r.Date,
		r.DateType, r.Edition, r.Attribution, r.DOI, r.License, r.Restrictions, r.ID)
	if err != nil {
		return fmt.Errorf("failed to save resource %d: %w", r.ID, err)
	}
	n, err := result.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ContactsByRole loads every role relation of a resource in one query,
// grouped by role name. Batch shape so serialization does one round trip.
func (s *Store) ContactsByRole(ctx context.Context, resourceID int64) (map[string][]Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rr.role, c.id, c.name, c.email
		FROM resource_roles rr
		JOIN contacts c ON c.id = rr.contact_id
		WHERE rr.resource_id = $1
		ORDER BY rr.role, rr.id`, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]Contact)
	for rows.Next() {
		var role string
		var c Contact
		if err := rows.Scan(&role, &c.ID, &c.Name, &c.Email); err != nil {
			return nil, err
		}
		result[role] = append(result[role], c)
	}
	return result, rows.Err()
}

// Contact loads a single contact by id.
func (s *Store) Contact(ctx context.Context, id int64) (*Contact, error) {
	var c Contact
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email FROM contacts WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ReplaceRoleContacts makes contactIDs the authoritative set for one role of
// a resource.
func (s *Store) ReplaceRoleContacts(ctx context.Context, resourceID int64, role string, contactIDs []int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM resource_roles WHERE resource_id = $1 AND role = $2`,
			resourceID, role); err != nil {
			return err
		}
		for _, id := range contactIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO resource_roles (resource_id, role, contact_id) VALUES ($1, $2, $3)`,
				resourceID, role, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Regions loads the regions linked to a resource.
func (s *Store) Regions(ctx context.Context, resourceID int64) ([]Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.code, r.name
		FROM resource_regions rr
		JOIN regions r ON r.id = rr.region_id
		WHERE rr.resource_id = $1
		ORDER BY r.name`, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []Region
	for rows.Next() {
		var r Region
		if err := rows.Scan(&r.ID, &r.Code, &r.Name); err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

// ReplaceRegions makes regionIDs the authoritative set of linked regions.
func (s *Store) ReplaceRegions(ctx context.Context, resourceID int64, regionIDs []int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM resource_regions WHERE resource_id = $1 AND region_id <> ALL($2)`,
			resourceID, pq.Array(regionIDs)); err != nil {
			return err
		}
		for _, id := range regionIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO resource_regions (resource_id, region_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`,
				resourceID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// AllRegions returns the full region vocabulary for schema choice lists.
func (s *Store) AllRegions(ctx context.Context) ([]Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name FROM regions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []Region
	for rows.Next() {
		var r Region
		if err := rows.Scan(&r.ID, &r.Code, &r.Name); err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

// Links loads the outgoing links of a resource, internal ones included.
func (s *Store) Links(ctx context.Context, resourceID int64) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_id, internal FROM resource_links
		WHERE source_id = $1 ORDER BY id`, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ID, &l.TargetID, &l.Internal); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ReplaceLinks makes targetIDs the authoritative set of user-managed links.
// Internal links are left untouched.
func (s *Store) ReplaceLinks(ctx context.Context, resourceID int64, targetIDs []int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM resource_links
			WHERE source_id = $1 AND NOT internal AND target_id <> ALL($2)`,
			resourceID, pq.Array(targetIDs)); err != nil {
			return err
		}
		for _, id := range targetIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO resource_links (source_id, target_id, internal)
				VALUES ($1, $2, FALSE)
				ON CONFLICT DO NOTHING`,
				resourceID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Keywords loads the free-form keywords of a resource.
func (s *Store) Keywords(ctx context.Context, resourceID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT keyword FROM resource_keywords WHERE resource_id = $1 ORDER BY keyword`,
		resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

// ReplaceKeywords makes keywords the authoritative free-keyword set.
func (s *Store) ReplaceKeywords(ctx context.Context, resourceID int64, keywords []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM resource_keywords WHERE resource_id = $1`, resourceID); err != nil {
			return err
		}
		for _, k := range keywords {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO resource_keywords (resource_id, keyword) VALUES ($1, $2)`,
				resourceID, k); err != nil {
				return err
			}
		}
		return nil
	})
}

// ThesaurusKeywords loads the about-URIs of thesaurus keywords linked to a
// resource, grouped by thesaurus identifier.
func (s *Store) ThesaurusKeywords(ctx context.Context, resourceID int64) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.identifier, tk.about
		FROM resource_tkeywords rtk
		JOIN thesaurus_keywords tk ON tk.id = rtk.tkeyword_id
		JOIN thesauri t ON t.id = tk.thesaurus_id
		WHERE rtk.resource_id = $1
		ORDER BY t.identifier, tk.about`, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var identifier, about string
		if err := rows.Scan(&identifier, &about); err != nil {
			return nil, err
		}
		result[identifier] = append(result[identifier], about)
	}
	return result, rows.Err()
}

// ReplaceThesaurusKeywords makes abouts the authoritative keyword set for one
// thesaurus of a resource.
func (s *Store) ReplaceThesaurusKeywords(ctx context.Context, resourceID int64, thesaurusID string, abouts []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM resource_tkeywords
			WHERE resource_id = $1 AND tkeyword_id IN (
				SELECT tk.id FROM thesaurus_keywords tk
				JOIN thesauri t ON t.id = tk.thesaurus_id
				WHERE t.identifier = $2)`,
			resourceID, thesaurusID); err != nil {
			return err
		}
		for _, about := range abouts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO resource_tkeywords (resource_id, tkeyword_id)
				SELECT $1, tk.id FROM thesaurus_keywords tk
				JOIN thesauri t ON t.id = tk.thesaurus_id
				WHERE t.identifier = $2 AND tk.about = $3`,
				resourceID, thesaurusID, about); err != nil {
				return err
			}
		}
		return nil
	})
}

// SparseValues loads every generic name/value metadata row of a resource.
func (s *Store) SparseValues(ctx context.Context, resourceID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM resource_sparse_values WHERE resource_id = $1`,
		resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		result[name] = value
	}
	return result, rows.Err()
}

// UpsertSparseValue writes one generic name/value metadata row.
func (s *Store) UpsertSparseValue(ctx context.Context, resourceID int64, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resource_sparse_values (resource_id, name, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (resource_id, name) DO UPDATE SET value = EXCLUDED.value`,
		resourceID, name, value)
	return err
}

// DeleteSparseValue removes one generic name/value metadata row if present.
func (s *Store) DeleteSparseValue(ctx context.Context, resourceID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM resource_sparse_values WHERE resource_id = $1 AND name = $2`,
		resourceID, name)
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
