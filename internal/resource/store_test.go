package resource

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func resourceRows(id int64, uid uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "uuid", "kind", "owner_id", "group_id", "title", "abstract", "purpose",
		"language", "date", "date_type", "edition", "attribution", "doi", "license",
		"restrictions", "created", "updated",
	}).AddRow(id, uid.String(), "dataset", 7, nil, "Roads", "Road network", "",
		"en", now, "publication", "", "", "", "", "", now, now)
}

func TestStore_Get(t *testing.T) {
	store, mock := setupStore(t)
	uid := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM resources WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(resourceRows(42, uid))

	res, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.ID)
	assert.Equal(t, uid, res.UUID)
	assert.Equal(t, KindDataset, res.Kind)
	assert.Equal(t, "Roads", res.Title)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetNotFound(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM resources WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveNotFound(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec(`UPDATE resources SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Save(context.Background(), &Resource{ID: 99})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ReplaceRegions(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM resource_regions WHERE resource_id = \$1 AND region_id <> ALL\(\$2\)`).
		WithArgs(int64(1), pq.Array([]int64{10, 11})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO resource_regions`).
		WithArgs(int64(1), int64(10)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO resource_regions`).
		WithArgs(int64(1), int64(11)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := store.ReplaceRegions(context.Background(), 1, []int64{10, 11})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceLinksPreservesInternal(t *testing.T) {
	store, mock := setupStore(t)

	// The delete must only touch non-internal links.
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM resource_links\s+WHERE source_id = \$1 AND NOT internal AND target_id <> ALL\(\$2\)`).
		WithArgs(int64(1), pq.Array([]int64{5})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO resource_links`).
		WithArgs(int64(1), int64(5)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.ReplaceLinks(context.Background(), 1, []int64{5})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceRoleContacts(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM resource_roles WHERE resource_id = \$1 AND role = \$2`).
		WithArgs(int64(1), "author").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO resource_roles`).
		WithArgs(int64(1), "author", int64(3)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.ReplaceRoleContacts(context.Background(), 1, "author", []int64{3})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SparseValues(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(`SELECT name, value FROM resource_sparse_values`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
			AddRow("title_multilang_it", "Strade").
			AddRow("inspire_theme", "tn"))

	values, err := store.SparseValues(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"title_multilang_it": "Strade",
		"inspire_theme":      "tn",
	}, values)
}

func TestStore_UpsertAndDeleteSparseValue(t *testing.T) {
	store, mock := setupStore(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO resource_sparse_values`).
		WithArgs(int64(1), "inspire_theme", "tn").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, store.UpsertSparseValue(ctx, 1, "inspire_theme", "tn"))

	mock.ExpectExec(`DELETE FROM resource_sparse_values`).
		WithArgs(int64(1), "inspire_theme").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.DeleteSparseValue(ctx, 1, "inspire_theme"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
