package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocat-project/geocat/internal/indexing"
	"github.com/geocat-project/geocat/internal/metadata"
	"github.com/geocat-project/geocat/internal/resource"
)

type fakeMetadata struct {
	schemaLang   string
	instance     map[string]any
	instanceErrs metadata.ErrorMap
	updateErrs   metadata.ErrorMap
	updated      map[string]any
}

func (f *fakeMetadata) GetSchema(_ context.Context, lang string) (*metadata.Schema, error) {
	f.schemaLang = lang
	s := metadata.NewSchema("https://example.org/s", "Test", nil)
	s.AddProperty("title", metadata.Subschema{"type": "string", metadata.HandlerAnnotation: "core"})
	return s, nil
}

func (f *fakeMetadata) BuildInstance(context.Context, *resource.Resource, string) (map[string]any, metadata.ErrorMap, error) {
	errs := f.instanceErrs
	if errs == nil {
		errs = metadata.NewErrorMap()
	}
	return f.instance, errs, nil
}

func (f *fakeMetadata) UpdateInstance(_ context.Context, _ *resource.Resource, instance map[string]any) metadata.ErrorMap {
	f.updated = instance
	if f.updateErrs == nil {
		return metadata.NewErrorMap()
	}
	return f.updateErrs
}

type fakeLoader struct {
	res *resource.Resource
}

func (f *fakeLoader) Get(_ context.Context, id int64) (*resource.Resource, error) {
	if f.res == nil || f.res.ID != id {
		return nil, resource.ErrNotFound
	}
	return f.res, nil
}

func searchFilter() *indexing.Filter {
	return indexing.NewFilter(indexing.Config{
		Indexes:         map[string][]string{"default": {"title", "abstract"}},
		MultilangFields: []string{"title"},
		Languages:       []string{"it", "en"},
		DefaultLanguage: "it",
		PostgresLangs:   map[string]string{"it": "italian", "en": "english"},
	}, nil)
}

func newTestRouter(t *testing.T, meta *fakeMetadata, loader *fakeLoader) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	api := NewAPI(meta, loader, db, searchFilter(), "it", nil)
	return NewRouter(api, nil), mock
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetSchema(t *testing.T) {
	meta := &fakeMetadata{}
	router, _ := newTestRouter(t, meta, &fakeLoader{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/metadata/schema?lang=en", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "en", meta.schemaLang)
	body := decodeBody(t, rec)
	assert.Contains(t, body, "properties")
	assert.Equal(t, "object", body["type"])
}

func TestGetSchemaLangFromAcceptLanguage(t *testing.T) {
	meta := &fakeMetadata{}
	router, _ := newTestRouter(t, meta, &fakeLoader{})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/metadata/schema", nil)
	req.Header.Set("Accept-Language", "de-CH,de;q=0.9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "de", meta.schemaLang)
}

func TestGetInstance(t *testing.T) {
	meta := &fakeMetadata{instance: map[string]any{"title": "Fiumi", "group": nil}}
	loader := &fakeLoader{res: &resource.Resource{ID: 7}}
	router, _ := newTestRouter(t, meta, loader)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/metadata/instance/7", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Fiumi", body["title"])
	assert.NotContains(t, body, "extraErrors")
}

func TestGetInstanceWithReadErrors(t *testing.T) {
	errs := metadata.NewErrorMap()
	errs.Add("failed to load data", "contacts")
	meta := &fakeMetadata{instance: map[string]any{"title": "x"}, instanceErrs: errs}
	router, _ := newTestRouter(t, meta, &fakeLoader{res: &resource.Resource{ID: 7}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/metadata/instance/7", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "extraErrors")
}

func TestGetInstanceNotFound(t *testing.T) {
	router, _ := newTestRouter(t, &fakeMetadata{}, &fakeLoader{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/metadata/instance/99", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "The dataset was not found", decodeBody(t, rec)["message"])
}

func TestUpdateInstanceSuccess(t *testing.T) {
	meta := &fakeMetadata{}
	router, _ := newTestRouter(t, meta, &fakeLoader{res: &resource.Resource{ID: 7}})

	req := httptest.NewRequest(http.MethodPut, "/api/v2/metadata/instance/7",
		strings.NewReader(`{"title":"New title"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"title": "New title"}, meta.updated)
	body := decodeBody(t, rec)
	assert.Equal(t, "The resource was updated successfully", body["message"])
	assert.Equal(t, map[string]any{}, body["extraErrors"])
}

func TestUpdateInstanceValidationErrors(t *testing.T) {
	errs := metadata.NewErrorMap()
	errs.Add("doi is malformed", "doi")
	meta := &fakeMetadata{updateErrs: errs}
	router, _ := newTestRouter(t, meta, &fakeLoader{res: &resource.Resource{ID: 7}})

	req := httptest.NewRequest(http.MethodPatch, "/api/v2/metadata/instance/7",
		strings.NewReader(`{"doi":"bad"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	extra, ok := body["extraErrors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, extra, "doi")
}

func TestUpdateInstanceBadJSON(t *testing.T) {
	router, _ := newTestRouter(t, &fakeMetadata{}, &fakeLoader{res: &resource.Resource{ID: 7}})

	req := httptest.NewRequest(http.MethodPut, "/api/v2/metadata/instance/7",
		strings.NewReader(`{broken`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	router, mock := newTestRouter(t, &fakeMetadata{}, &fakeLoader{})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, uuid, kind, title FROM resources WHERE`)).
		WithArgs("default", "it", "italian", "fiumi:*").
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "kind", "title"}).
			AddRow(7, "5a0b2f3e-0000-0000-0000-000000000001", "dataset", "Fiumi"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/resources?search=fiumi&search_index=default", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["total"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchMutualExclusion(t *testing.T) {
	router, _ := newTestRouter(t, &fakeMetadata{}, &fakeLoader{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v2/resources?search=x&search_fields=title", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["message"], "mutually exclusive")
}

func TestSearchUnknownIndex(t *testing.T) {
	router, _ := newTestRouter(t, &fakeMetadata{}, &fakeLoader{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v2/resources?search=x&search_index=nope", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
