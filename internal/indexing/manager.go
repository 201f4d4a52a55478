// Package indexing keeps the per-resource full-text index rows in step with
// the resource's serialized metadata and builds the query-time search
// predicate over them.
package indexing

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/geocat-project/geocat/internal/metadata"
)

// Config is the indexing slice of the runtime configuration.
type Config struct {
	// Indexes maps an index name to the metadata instance fields it covers.
	Indexes map[string][]string
	// MultilangFields lists the base fields that carry per-language values.
	MultilangFields []string
	// PostgresLangs maps a language code to its text-search configuration
	// name ("it" to "italian"). Unmapped languages index with "simple".
	PostgresLangs map[string]string
	// Languages is the supported language codes, default first.
	Languages []string
	// DefaultLanguage is the fallback for language resolution and the
	// text-search configuration of language-agnostic rows.
	DefaultLanguage string
}

func (c Config) isMultilang(field string) bool {
	for _, f := range c.MultilangFields {
		if f == field {
			return true
		}
	}
	return false
}

// tsConfig returns the text-search configuration for a language code.
func (c Config) tsConfig(lang string) string {
	if name, ok := c.PostgresLangs[lang]; ok {
		return name
	}
	return "simple"
}

// Manager recomputes the index rows of one resource from its serialized
// metadata instance. After UpdateIndex returns, the persisted row set for
// the resource exactly matches the configured indexes and languages.
type Manager struct {
	db     *sql.DB
	cfg    Config
	logger *zap.Logger
}

// NewManager creates an index manager over a database handle.
func NewManager(db *sql.DB, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{db: db, cfg: cfg, logger: logger}
}

// indexNames returns the configured index names in stable order.
func (m *Manager) indexNames() []string {
	names := make([]string, 0, len(m.cfg.Indexes))
	for name := range m.cfg.Indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// asText flattens an instance value into indexable text. Arrays contribute
// their string elements; everything non-textual indexes as nothing.
func asText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// fillMultilang returns the per-language values of one multilingual field
// with the fill-in rule applied: a language with no content gets the
// concatenation of every non-empty language value plus the plain column
// value, so the field stays discoverable in every language's index.
func (m *Manager) fillMultilang(field string, instance map[string]any) map[string]string {
	values := make(map[string]string, len(m.cfg.Languages))
	var nonEmpty []string
	for _, lang := range m.cfg.Languages {
		v := asText(instance[metadata.MultiLangFieldName(field, lang)])
		values[lang] = v
		if v != "" {
			nonEmpty = append(nonEmpty, v)
		}
	}

	if len(nonEmpty) == len(m.cfg.Languages) {
		return values
	}

	merged := nonEmpty
	if plain := asText(instance[field]); plain != "" {
		merged = append(merged, plain)
	}
	fallback := strings.Join(merged, " ")
	for lang, v := range values {
		if v == "" {
			values[lang] = fallback
		}
	}
	return values
}

// UpdateIndex rebuilds every configured index row for one resource inside a
// single transaction. Rows for dropped indexes, dropped languages, or a
// representation style the index no longer uses are deleted in the same
// transaction, so a rerun or a reconfiguration never leaves orphans.
func (m *Manager) UpdateIndex(ctx context.Context, resourceID int64, instance map[string]any) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	names := m.indexNames()
	for _, name := range names {
		if err := m.updateOne(ctx, tx, resourceID, name, m.cfg.Indexes[name], instance); err != nil {
			return fmt.Errorf("index %s: %w", name, err)
		}
	}

	// Drop rows of indexes that are no longer configured.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM resource_index WHERE resource_id = $1 AND index_name <> ALL($2)`,
		resourceID, pq.Array(names)); err != nil {
		return fmt.Errorf("failed to prune dropped indexes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index update: %w", err)
	}
	return nil
}

func (m *Manager) updateOne(ctx context.Context, tx *sql.Tx, resourceID int64, name string, fields []string, instance map[string]any) error {
	var mlFields, plainFields []string
	for _, f := range fields {
		if m.cfg.isMultilang(f) {
			mlFields = append(mlFields, f)
		} else {
			plainFields = append(plainFields, f)
		}
	}

	var plainParts []string
	for _, f := range plainFields {
		if v := asText(instance[f]); v != "" {
			plainParts = append(plainParts, v)
		}
	}
	plainText := strings.Join(plainParts, " ")

	if len(mlFields) == 0 {
		// Language-agnostic: one NULL-language row, per-language rows gone.
		if err := m.upsertRow(ctx, tx, resourceID, name, nil, m.cfg.tsConfig(m.cfg.DefaultLanguage), plainText); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM resource_index WHERE resource_id = $1 AND index_name = $2 AND language IS NOT NULL`,
			resourceID, name)
		return err
	}

	filled := make(map[string]map[string]string, len(mlFields))
	for _, f := range mlFields {
		filled[f] = m.fillMultilang(f, instance)
	}

	for _, lang := range m.cfg.Languages {
		parts := make([]string, 0, len(mlFields)+1)
		for _, f := range mlFields {
			if v := filled[f][lang]; v != "" {
				parts = append(parts, v)
			}
		}
		if plainText != "" {
			parts = append(parts, plainText)
		}
		if err := m.upsertRow(ctx, tx, resourceID, name, &lang, m.cfg.tsConfig(lang), strings.Join(parts, " ")); err != nil {
			return err
		}
	}

	// Per-language representation: the NULL-language row and rows of
	// unsupported languages must not survive.
	_, err := tx.ExecContext(ctx,
		`DELETE FROM resource_index WHERE resource_id = $1 AND index_name = $2
		AND (language IS NULL OR language <> ALL($3))`,
		resourceID, name, pq.Array(m.cfg.Languages))
	return err
}

func (m *Manager) upsertRow(ctx context.Context, tx *sql.Tx, resourceID int64, name string, lang *string, tsConfig, text string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO resource_index (resource_id, index_name, language, vector)
		VALUES ($1, $2, $3, to_tsvector($4::regconfig, $5))
		ON CONFLICT (resource_id, index_name, COALESCE(language, '')) DO UPDATE SET vector = EXCLUDED.vector`,
		resourceID, name, lang, tsConfig, text)
	return err
}

// DeleteIndex removes every index row of a resource. Called when the
// resource itself is deleted.
func (m *Manager) DeleteIndex(ctx context.Context, resourceID int64) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM resource_index WHERE resource_id = $1`, resourceID)
	return err
}
