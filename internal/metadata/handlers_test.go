package metadata

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocat-project/geocat/internal/resource"
	"github.com/geocat-project/geocat/internal/thesaurus"
)

func TestCoreHandlerDateRoundTrip(t *testing.T) {
	h := NewCoreHandler(map[string]string{"en": "English"})
	res := &resource.Resource{}

	// Zero date serializes as unset, not as the zero time string.
	_, ok := h.GetInstanceValue(context.Background(), NewContext(), res, "date", "en")
	assert.False(t, ok)

	err := h.UpdateResource(context.Background(), NewContext(), res, "date",
		map[string]any{"date": "2026-03-01T12:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), res.Date)

	v, ok := h.GetInstanceValue(context.Background(), NewContext(), res, "date", "en")
	require.True(t, ok)
	assert.Equal(t, "2026-03-01T12:00:00Z", v)

	// Null clears the date back to unset.
	require.NoError(t, h.UpdateResource(context.Background(), NewContext(), res, "date",
		map[string]any{"date": nil}))
	assert.True(t, res.Date.IsZero())
}

func TestCoreHandlerInvalidDate(t *testing.T) {
	h := NewCoreHandler(nil)
	err := h.UpdateResource(context.Background(), NewContext(), &resource.Resource{}, "date",
		map[string]any{"date": "yesterday"})
	require.Error(t, err)
}

func TestCoreHandlerLocalizedSchema(t *testing.T) {
	h := NewCoreHandler(map[string]string{"en": "English", "it": "Italiano"})
	schema := NewSchema("test", "Test", nil)
	require.NoError(t, h.UpdateSchema(context.Background(), NewContext(), schema, "it"))

	assert.Equal(t, "Titolo", schema.Property("title").Title())
	assert.True(t, schema.Property("title").IsRequired())
	assert.Equal(t, []string{"title"}, schema.Required())
}

func TestDOIHandlerUnsetWhenEmpty(t *testing.T) {
	h := NewDOIHandler()

	_, ok := h.GetInstanceValue(context.Background(), NewContext(), &resource.Resource{}, "doi", "en")
	assert.False(t, ok, "an empty DOI must be omitted, not serialized as empty string")

	v, ok := h.GetInstanceValue(context.Background(), NewContext(), &resource.Resource{DOI: "10.1000/x"}, "doi", "en")
	require.True(t, ok)
	assert.Equal(t, "10.1000/x", v)
}

func TestGroupHandlerNullVsUnset(t *testing.T) {
	h := NewGroupHandler()

	// No group is a present null, the documented counterpart of DOI's unset.
	v, ok := h.GetInstanceValue(context.Background(), NewContext(), &resource.Resource{}, "group", "en")
	assert.True(t, ok)
	assert.Nil(t, v)

	res := &resource.Resource{GroupID: sql.NullInt64{Int64: 3, Valid: true}}
	v, ok = h.GetInstanceValue(context.Background(), NewContext(), res, "group", "en")
	require.True(t, ok)
	assert.Equal(t, int64(3), v)

	// Null payload clears the group.
	require.NoError(t, h.UpdateResource(context.Background(), NewContext(), res, "group",
		map[string]any{"group": nil}))
	assert.False(t, res.GroupID.Valid)
}

func TestRegionHandlerFullReplace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	h := NewRegionHandler(resource.NewStore(db))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		`DELETE FROM resource_regions WHERE resource_id = $1 AND region_id <> ALL($2)`)).
		WithArgs(int64(7), pq.Array([]int64{1, 2, 3})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	for _, id := range []int64{1, 2, 3} {
		mock.ExpectExec(`INSERT INTO resource_regions`).
			WithArgs(int64(7), id).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err = h.UpdateResource(context.Background(), NewContext(), &resource.Resource{ID: 7}, "regions",
		map[string]any{"regions": []any{float64(1), float64(2), float64(3)}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactHandlerOwnerWritesResourceAttribute(t *testing.T) {
	h := NewContactHandler(nil)
	res := &resource.Resource{ID: 7, OwnerID: 1}

	err := h.UpdateResource(context.Background(), NewContext(), res, "owner",
		map[string]any{"owner": map[string]any{"id": float64(42)}})
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.OwnerID)
}

func TestContactHandlerManyValuedRoleReplaces(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	h := NewContactHandler(resource.NewStore(db))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		`DELETE FROM resource_roles WHERE resource_id = $1 AND role = $2`)).
		WithArgs(int64(7), "author").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO resource_roles`).
		WithArgs(int64(7), "author", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = h.UpdateResource(context.Background(), NewContext(), &resource.Resource{ID: 7}, "author",
		map[string]any{"author": []any{map[string]any{"id": float64(5)}}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThesaurusHandlerCardinalityShapes(t *testing.T) {
	h := &ThesaurusKeywordsHandler{}
	hctx := NewContext()
	hctx.Set(tkeywordValuesKey, map[string][]string{
		"themes": {"about-a", "about-b"},
		"scope":  {"about-s"},
	})
	hctx.Set(tkeywordCardsKey, map[string]int{"themes": -1, "scope": 1})

	v, ok := h.GetInstanceValue(context.Background(), hctx, nil, "themes", "en")
	require.True(t, ok)
	assert.Equal(t, []any{"about-a", "about-b"}, v)

	v, ok = h.GetInstanceValue(context.Background(), hctx, nil, "scope", "en")
	require.True(t, ok)
	assert.Equal(t, "about-s", v)

	// Single-valued without a keyword: unset, not empty string.
	_, ok = h.GetInstanceValue(context.Background(), hctx, nil, "other_single", "en")
	assert.True(t, ok, "multi-valued default shape is an empty array")
}

func TestThesaurusHandlerBrokenVocabularyReportsFieldError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	h := NewThesaurusKeywordsHandler(thesaurus.NewStore(db), nil, nil, nil)

	thesauriRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "identifier", "title", "card_max"}).
			AddRow(1, "gemet", "GEMET", -1)
	}

	mock.ExpectQuery(`SELECT id, identifier, title, card_max FROM thesauri`).
		WillReturnRows(thesauriRows())
	mock.ExpectQuery(`SELECT tk.about`).WillReturnError(assert.AnError)

	schema := NewSchema("test", "Test", nil)
	require.NoError(t, h.UpdateSchema(context.Background(), NewContext(), schema, "en"))
	assert.True(t, schema.Property("gemet").IsReadOnly())

	// Reading the property now reports the broken vocabulary to the caller
	// instead of silently omitting it.
	hctx := NewContext()
	_, ok := h.GetInstanceValue(context.Background(), hctx, nil, "gemet", "en")
	assert.False(t, ok)
	require.NotEmpty(t, hctx.Errors.At("gemet"))
	assert.Contains(t, hctx.Errors.At("gemet")[0], "administrator")

	// A later successful build clears the state.
	mock.ExpectQuery(`SELECT id, identifier, title, card_max FROM thesauri`).
		WillReturnRows(thesauriRows())
	mock.ExpectQuery(`SELECT tk.about`).
		WillReturnRows(sqlmock.NewRows([]string{"about", "label"}).
			AddRow("http://www.eionet.europa.eu/gemet/concept/1", "Water"))

	require.NoError(t, h.UpdateSchema(context.Background(), NewContext(), NewSchema("test", "Test", nil), "en"))

	hctx = NewContext()
	hctx.Set(tkeywordValuesKey, map[string][]string{})
	hctx.Set(tkeywordCardsKey, map[string]int{"gemet": -1})
	_, ok = h.GetInstanceValue(context.Background(), hctx, nil, "gemet", "en")
	assert.True(t, ok)
	assert.True(t, hctx.Errors.Empty())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThesaurusHandlerSingleValuedUnset(t *testing.T) {
	h := &ThesaurusKeywordsHandler{}
	hctx := NewContext()
	hctx.Set(tkeywordValuesKey, map[string][]string{})
	hctx.Set(tkeywordCardsKey, map[string]int{"scope": 1})

	_, ok := h.GetInstanceValue(context.Background(), hctx, nil, "scope", "en")
	assert.False(t, ok)
}
