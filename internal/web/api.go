package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/geocat-project/geocat/internal/indexing"
	"github.com/geocat-project/geocat/internal/metadata"
	"github.com/geocat-project/geocat/internal/resource"
)

// notFoundMessage is the body of every resource-lookup miss.
const notFoundMessage = "The dataset was not found"

// MetadataService is the slice of the metadata manager the API consumes.
type MetadataService interface {
	GetSchema(ctx context.Context, lang string) (*metadata.Schema, error)
	BuildInstance(ctx context.Context, res *resource.Resource, lang string) (map[string]any, metadata.ErrorMap, error)
	UpdateInstance(ctx context.Context, res *resource.Resource, instance map[string]any) metadata.ErrorMap
}

// ResourceLoader resolves resource primary keys. *resource.Store satisfies it.
type ResourceLoader interface {
	Get(ctx context.Context, id int64) (*resource.Resource, error)
}

// API holds the HTTP handlers of the metadata endpoints.
type API struct {
	meta        MetadataService
	resources   ResourceLoader
	db          *sql.DB
	filter      *indexing.Filter
	defaultLang string
	logger      *zap.Logger
}

// NewAPI wires the API handlers. db backs the search endpoint's resource
// query; the filter builds its predicate.
func NewAPI(meta MetadataService, resources ResourceLoader, db *sql.DB, filter *indexing.Filter, defaultLang string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		meta:        meta,
		resources:   resources,
		db:          db,
		filter:      filter,
		defaultLang: defaultLang,
		logger:      logger,
	}
}

// NewRouter builds the chi router for the API.
func NewRouter(api *API, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/metadata/schema", api.GetSchemaHandler)
		r.Route("/metadata/instance/{pk}", func(r chi.Router) {
			r.Get("/", api.GetInstanceHandler)
			r.Put("/", api.UpdateInstanceHandler)
			r.Patch("/", api.UpdateInstanceHandler)
		})
		r.Get("/resources", api.SearchHandler)
	})
	return r
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message})
}

// lang picks the response language: explicit query parameter, else the
// Accept-Language header's primary tag, else the configured default.
func (a *API) lang(r *http.Request) string {
	if l := r.URL.Query().Get("lang"); l != "" {
		return l
	}
	if l := acceptLanguage(r); l != "" {
		return l
	}
	return a.defaultLang
}

// acceptLanguage extracts the 2-letter primary tag of the Accept-Language
// header, "" if absent.
func acceptLanguage(r *http.Request) string {
	header := r.Header.Get("Accept-Language")
	if header == "" {
		return ""
	}
	first := strings.TrimSpace(strings.SplitN(header, ",", 2)[0])
	first = strings.SplitN(first, ";", 2)[0]
	if len(first) >= 2 {
		return strings.ToLower(first[:2])
	}
	return ""
}

// loadResource resolves {pk}, writing the 404 or 400 response itself when it
// returns nil.
func (a *API) loadResource(w http.ResponseWriter, r *http.Request) *resource.Resource {
	pk, err := strconv.ParseInt(chi.URLParam(r, "pk"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusNotFound, notFoundMessage)
		return nil
	}
	res, err := a.resources.Get(r.Context(), pk)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, notFoundMessage)
		} else {
			a.logger.Error("resource load failed", zap.Int64("pk", pk), zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "Internal server error")
		}
		return nil
	}
	return res
}

// GetSchemaHandler serves the composed schema document, localized by lang.
func (a *API) GetSchemaHandler(w http.ResponseWriter, r *http.Request) {
	schema, err := a.meta.GetSchema(r.Context(), a.lang(r))
	if err != nil {
		a.logger.Error("schema build failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Failed to build the metadata schema")
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// GetInstanceHandler serves the serialized metadata instance of one
// resource. Field-level read problems ride along under "extraErrors".
func (a *API) GetInstanceHandler(w http.ResponseWriter, r *http.Request) {
	res := a.loadResource(w, r)
	if res == nil {
		return
	}

	instance, errs, err := a.meta.BuildInstance(r.Context(), res, a.lang(r))
	if err != nil {
		a.logger.Error("instance build failed", zap.Int64("pk", res.ID), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Failed to build the metadata instance")
		return
	}
	if !errs.Empty() {
		instance["extraErrors"] = errs
	}
	writeJSON(w, http.StatusOK, instance)
}

// UpdateInstanceHandler applies a submitted instance. An empty error map is
// a 200; a non-empty one is a 400 with the map echoed back for field-level
// display.
func (a *API) UpdateInstanceHandler(w http.ResponseWriter, r *http.Request) {
	res := a.loadResource(w, r)
	if res == nil {
		return
	}

	var instance map[string]any
	if err := json.NewDecoder(r.Body).Decode(&instance); err != nil {
		writeMessage(w, http.StatusBadRequest, "The request body is not a JSON object")
		return
	}

	errs := a.meta.UpdateInstance(r.Context(), res, instance)
	if errs.Empty() {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "The resource was updated successfully",
			"extraErrors": errs,
		})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"message":     "Some errors were found while updating the resource",
		"extraErrors": errs,
	})
}

// searchRow is one search result entry.
type searchRow struct {
	ID    int64  `json:"id"`
	UUID  string `json:"uuid"`
	Kind  string `json:"kind"`
	Title string `json:"title"`
}

// SearchHandler lists resources matching a full-text query against a named
// index. search/search_index/search_lang are mutually exclusive with the
// generic search_fields parameter.
func (a *API) SearchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("search_fields") != "" && (q.Get("search") != "" || q.Get("search_index") != "") {
		writeMessage(w, http.StatusBadRequest,
			"search and search_fields are mutually exclusive")
		return
	}

	index := q.Get("search_index")
	if index == "" {
		index = "default"
	}

	clause, args, err := a.filter.SearchClause(index, q.Get("search"), q.Get("search_lang"), acceptLanguage(r))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := a.db.QueryContext(r.Context(),
		`SELECT id, uuid, kind, title FROM resources WHERE `+clause+` ORDER BY id`, args...)
	if err != nil {
		a.logger.Error("search query failed", zap.String("index", index), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Search failed")
		return
	}
	defer rows.Close()

	results := make([]searchRow, 0)
	for rows.Next() {
		var row searchRow
		if err := rows.Scan(&row.ID, &row.UUID, &row.Kind, &row.Title); err != nil {
			a.logger.Error("search scan failed", zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "Search failed")
			return
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		a.logger.Error("search iteration failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(results),
		"resources": results,
	})
}
