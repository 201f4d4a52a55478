package indexing

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Indexes: map[string][]string{
			"default": {"title", "abstract"},
		},
		Languages:       []string{"it", "en"},
		DefaultLanguage: "it",
		PostgresLangs:   map[string]string{"it": "italian", "en": "english"},
	}
}

func newTestManager(t *testing.T, cfg Config) (*Manager, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewManager(db, cfg, nil), mock, func() { db.Close() }
}

const (
	upsertSQL      = `INSERT INTO resource_index`
	deleteLangsSQL = `AND language IS NOT NULL`
	deleteStyleSQL = `AND (language IS NULL OR language <> ALL($3))`
	pruneSQL       = `DELETE FROM resource_index WHERE resource_id = $1 AND index_name <> ALL($2)`
)

func TestUpdateIndexPlainOnly(t *testing.T) {
	m, mock, done := newTestManager(t, testConfig())
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(upsertSQL).
		WithArgs(int64(7), "default", nil, "italian", "Fiumi della Lombardia descrizione").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteLangsSQL)).
		WithArgs(int64(7), "default").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(pruneSQL)).
		WithArgs(int64(7), pq.Array([]string{"default"})).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := m.UpdateIndex(context.Background(), 7, map[string]any{
		"title":    "Fiumi della Lombardia",
		"abstract": "descrizione",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateIndexMultilingual(t *testing.T) {
	cfg := testConfig()
	cfg.MultilangFields = []string{"title"}
	m, mock, done := newTestManager(t, cfg)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(upsertSQL).
		WithArgs(int64(7), "default", "it", "italian", "Fiumi descrizione").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upsertSQL).
		WithArgs(int64(7), "default", "en", "english", "Fiumi descrizione").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteStyleSQL)).
		WithArgs(int64(7), "default", pq.Array([]string{"it", "en"})).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(pruneSQL)).
		WithArgs(int64(7), pq.Array([]string{"default"})).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	// The English translation is missing: the fill-in rule reuses the
	// Italian content so the English index row is never empty.
	err := m.UpdateIndex(context.Background(), 7, map[string]any{
		"title_multilang_it": "Fiumi",
		"abstract":           "descrizione",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateIndexIdempotent(t *testing.T) {
	m, mock, done := newTestManager(t, testConfig())
	defer done()

	// Two runs over the same instance issue the identical statement and
	// argument sequence: the upsert overwrites in place and the deletes
	// find nothing new to remove, so the row set cannot drift.
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(upsertSQL).
			WithArgs(int64(7), "default", nil, "italian", "Fiumi della Lombardia descrizione").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(deleteLangsSQL)).
			WithArgs(int64(7), "default").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(pruneSQL)).
			WithArgs(int64(7), pq.Array([]string{"default"})).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
	}

	instance := map[string]any{
		"title":    "Fiumi della Lombardia",
		"abstract": "descrizione",
	}
	require.NoError(t, m.UpdateIndex(context.Background(), 7, instance))
	require.NoError(t, m.UpdateIndex(context.Background(), 7, instance))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateIndexRollsBackOnFailure(t *testing.T) {
	m, mock, done := newTestManager(t, testConfig())
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(upsertSQL).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := m.UpdateIndex(context.Background(), 7, map[string]any{"title": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteIndex(t *testing.T) {
	m, mock, done := newTestManager(t, testConfig())
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM resource_index WHERE resource_id = $1`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, m.DeleteIndex(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFillMultilang(t *testing.T) {
	cfg := testConfig()
	cfg.MultilangFields = []string{"title"}
	m := NewManager(nil, cfg, nil)

	t.Run("complete translations untouched", func(t *testing.T) {
		got := m.fillMultilang("title", map[string]any{
			"title_multilang_it": "Fiumi",
			"title_multilang_en": "Rivers",
		})
		assert.Equal(t, map[string]string{"it": "Fiumi", "en": "Rivers"}, got)
	})

	t.Run("missing language borrows the others plus the plain column", func(t *testing.T) {
		got := m.fillMultilang("title", map[string]any{
			"title_multilang_it": "Fiumi",
			"title":              "Rivers of Lombardy",
		})
		assert.Equal(t, "Fiumi", got["it"])
		assert.Equal(t, "Fiumi Rivers of Lombardy", got["en"])
	})

	t.Run("only the plain column has content", func(t *testing.T) {
		got := m.fillMultilang("title", map[string]any{"title": "Rivers"})
		assert.Equal(t, map[string]string{"it": "Rivers", "en": "Rivers"}, got)
	})
}

func TestAsText(t *testing.T) {
	assert.Equal(t, "hello", asText("hello"))
	assert.Equal(t, "a b", asText([]any{"a", "", "b"}))
	assert.Equal(t, "", asText(42))
	assert.Equal(t, "", asText(nil))
}
