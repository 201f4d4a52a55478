package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/geocat-project/geocat/internal/cache"
	"github.com/geocat-project/geocat/internal/resource"
)

// Freshness exposes the thesaurus last-modified marker the schema cache is
// validated against. *thesaurus.Store satisfies it.
type Freshness interface {
	LastUpdated(ctx context.Context) (time.Time, error)
}

// ResourceSaver persists the column-backed fields of a resource row.
// *resource.Store satisfies it.
type ResourceSaver interface {
	Save(ctx context.Context, r *resource.Resource) error
}

// Indexer recomputes the search index rows of a resource from its freshly
// serialized metadata instance. *indexing.Manager satisfies it.
type Indexer interface {
	UpdateIndex(ctx context.Context, resourceID int64, instance map[string]any) error
}

// schemaEnvelope is the cached schema artifact together with the thesaurus
// marker captured at computation time.
type schemaEnvelope struct {
	Date   time.Time `json:"date"`
	Schema *Schema   `json:"schema"`
}

// Manager owns the ordered handler collection and drives the three passes:
// schema build, instance serialize, instance deserialize.
type Manager struct {
	handlers []Handler
	byID     map[string]Handler

	cache       cache.Cache
	fresh       Freshness
	saver       ResourceSaver
	indexer     Indexer
	schemaID    string
	defaultLang string
	logger      *zap.Logger
}

// NewManager creates a manager with no handlers registered. The indexer is
// optional; everything else is required.
func NewManager(c cache.Cache, fresh Freshness, saver ResourceSaver, defaultLang string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		byID:        make(map[string]Handler),
		cache:       c,
		fresh:       fresh,
		saver:       saver,
		schemaID:    "https://geocat.example.org/metadata/schema",
		defaultLang: defaultLang,
		logger:      logger,
	}
}

// SetIndexer wires the search index rebuild triggered after a successful
// deserialize pass.
func (m *Manager) SetIndexer(indexer Indexer) {
	m.indexer = indexer
}

// Register appends a handler. Registration order is the visitation order of
// every pass and must be established once at process start; it is not safe
// to call concurrently with request handling.
func (m *Manager) Register(h Handler) error {
	if _, ok := m.byID[h.ID()]; ok {
		return fmt.Errorf("handler %q already registered", h.ID())
	}
	m.handlers = append(m.handlers, h)
	m.byID[h.ID()] = h
	return nil
}

// Handlers returns the registered handlers in registration order.
func (m *Manager) Handlers() []Handler {
	out := make([]Handler, len(m.handlers))
	copy(out, m.handlers)
	return out
}

// BuildSchema assembles the schema document for lang by visiting every
// handler in registration order against the same mutable document. A handler
// failure aborts the build: the schema is all-or-nothing and a broken one is
// never cached.
func (m *Manager) BuildSchema(ctx context.Context, lang string) (*Schema, error) {
	schema := NewSchema(m.schemaID, T(lang, "schema.title"), m.logger)
	hctx := NewContext()
	for _, h := range m.handlers {
		if err := h.UpdateSchema(ctx, hctx, schema, lang); err != nil {
			return nil, fmt.Errorf("handler %s failed to update schema: %w", h.ID(), err)
		}
	}
	return schema, nil
}

// GetSchema returns the schema for lang, served from cache while the cached
// thesaurus marker still equals the current one. The marker is captured
// before the cache lookup, so a thesaurus mutation racing with a rebuild is
// detected on the next read at the latest. Concurrent misses may rebuild
// redundantly; cache writes are last-write-wins per language.
func (m *Manager) GetSchema(ctx context.Context, lang string) (*Schema, error) {
	date, err := m.fresh.LastUpdated(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read thesaurus marker: %w", err)
	}

	key := "schema:" + lang
	if data, err := m.cache.Get(ctx, key); err == nil {
		var env schemaEnvelope
		if err := json.Unmarshal(data, &env); err == nil && env.Schema != nil && env.Date.Equal(date) {
			env.Schema.logger = m.logger
			return env.Schema, nil
		}
	} else if !cache.IsCacheMiss(err) {
		m.logger.Warn("schema cache read failed", zap.String("lang", lang), zap.Error(err))
	}

	schema, err := m.BuildSchema(ctx, lang)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(schemaEnvelope{Date: date, Schema: schema})
	if err != nil {
		return nil, err
	}
	if err := m.cache.Set(ctx, key, data, 0); err != nil {
		m.logger.Warn("schema cache write failed", zap.String("lang", lang), zap.Error(err))
	}
	return schema, nil
}

// InvalidateSchemas drops every cached schema. Administrative/test use.
func (m *Manager) InvalidateSchemas(ctx context.Context) error {
	return m.cache.Clear(ctx)
}

// ownerOf resolves the handler owning a property via its handler tag.
// Untagged or unknown-tagged properties are skipped with a warning; the
// manager never guesses ownership.
func (m *Manager) ownerOf(name string, sub Subschema) Handler {
	id := sub.Handler()
	if id == "" {
		m.logger.Warn("schema property has no handler tag, skipping", zap.String("property", name))
		return nil
	}
	h, ok := m.byID[id]
	if !ok {
		m.logger.Warn("schema property owned by unknown handler, skipping",
			zap.String("property", name), zap.String("handler", id))
		return nil
	}
	return h
}

// BuildInstance serializes a resource into its metadata instance for lang.
// Handlers' serialization contexts are loaded first (one batched pre-pass
// each), then every schema property is read through its owning handler. A
// handler signalling "unset" omits the key entirely, which is distinct from
// a present null value. The returned error map carries field-scoped read
// problems; the error return is only non-nil when the schema itself cannot
// be obtained.
func (m *Manager) BuildInstance(ctx context.Context, res *resource.Resource, lang string) (map[string]any, ErrorMap, error) {
	schema, err := m.GetSchema(ctx, lang)
	if err != nil {
		return nil, nil, err
	}

	hctx := NewContext()
	for _, h := range m.handlers {
		loader, ok := h.(SerializationContextLoader)
		if !ok {
			continue
		}
		if err := loader.LoadSerializationContext(ctx, hctx, res); err != nil {
			m.logger.Error("serialization context load failed",
				zap.String("handler", h.ID()), zap.Error(err))
			hctx.Errors.Add(fmt.Sprintf("failed to load data: %v", err), h.ID())
		}
	}

	instance := make(map[string]any)
	for _, name := range schema.Names() {
		h := m.ownerOf(name, schema.Property(name))
		if h == nil {
			continue
		}
		if value, ok := h.GetInstanceValue(ctx, hctx, res, name, lang); ok {
			instance[name] = value
		}
	}
	return instance, hctx.Errors, nil
}

// UpdateInstance applies a submitted metadata instance to a resource:
// every schema property is routed to its owning handler, then pre-save
// hooks run, then the row is saved, then post-save hooks run, then the
// search index is recomputed from the fresh instance. Per-field and hook
// failures are recorded in the returned error map without blocking the
// rest; only the map tells the caller how it went. An empty map means fully
// successful; a non-empty map may still mean the resource was saved.
func (m *Manager) UpdateInstance(ctx context.Context, res *resource.Resource, instance map[string]any) ErrorMap {
	hctx := NewContext()

	schema, err := m.GetSchema(ctx, m.defaultLang)
	if err != nil {
		hctx.Errors.Add(fmt.Sprintf("failed to load metadata schema: %v", err))
		return hctx.Errors
	}

	for _, h := range m.handlers {
		loader, ok := h.(DeserializationContextLoader)
		if !ok {
			continue
		}
		if err := loader.LoadDeserializationContext(ctx, hctx, res); err != nil {
			m.logger.Error("deserialization context load failed",
				zap.String("handler", h.ID()), zap.Error(err))
			hctx.Errors.Add(fmt.Sprintf("failed to load data: %v", err), h.ID())
		}
	}

	for _, name := range schema.Names() {
		sub := schema.Property(name)
		if sub.IsReadOnly() {
			// Derived or unavailable fields are not writable, whatever the
			// payload says.
			continue
		}
		h := m.ownerOf(name, sub)
		if h == nil {
			continue
		}
		if err := h.UpdateResource(ctx, hctx, res, name, instance); err != nil {
			m.logger.Warn("field update failed",
				zap.String("field", name), zap.String("handler", h.ID()), zap.Error(err))
			hctx.Errors.Add(err.Error(), name)
		}
	}

	for _, h := range m.handlers {
		ps, ok := h.(PreSaver)
		if !ok {
			continue
		}
		if err := ps.PreSave(ctx, hctx, res, instance); err != nil {
			m.logger.Error("pre-save hook failed",
				zap.String("handler", h.ID()), zap.Error(err), zap.Stack("stack"))
			hctx.Errors.Add(fmt.Sprintf("pre-save failed: %v", err), h.ID())
		}
	}

	saved := true
	if err := m.saver.Save(ctx, res); err != nil {
		saved = false
		m.logger.Error("resource save failed", zap.Int64("resource", res.ID), zap.Error(err))
		hctx.Errors.Add(fmt.Sprintf("failed to save resource: %v", err))
	}

	for _, h := range m.handlers {
		ps, ok := h.(PostSaver)
		if !ok {
			continue
		}
		if err := ps.PostSave(ctx, hctx, res, instance); err != nil {
			m.logger.Error("post-save hook failed",
				zap.String("handler", h.ID()), zap.Error(err), zap.Stack("stack"))
			hctx.Errors.Add(fmt.Sprintf("post-save failed: %v", err), h.ID())
		}
	}

	if saved && m.indexer != nil {
		fresh, _, err := m.BuildInstance(ctx, res, m.defaultLang)
		if err != nil {
			m.logger.Error("reindex serialization failed", zap.Int64("resource", res.ID), zap.Error(err))
			hctx.Errors.Add(fmt.Sprintf("failed to reindex resource: %v", err))
		} else if err := m.indexer.UpdateIndex(ctx, res.ID, fresh); err != nil {
			m.logger.Error("reindex failed", zap.Int64("resource", res.ID), zap.Error(err))
			hctx.Errors.Add(fmt.Sprintf("failed to reindex resource: %v", err))
		}
	}

	return hctx.Errors
}
