package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/geocat-project/geocat/internal/resource"
)

const sparseValuesKey = "sparse:values"

// SparseHandler owns every dynamically registered schema property and
// persists their values into the generic name/value side table. Extension
// modules piggy-back on it through the sparse field registry instead of
// defining side tables of their own.
type SparseHandler struct {
	registry *SparseRegistry
	store    *resource.Store
	logger   *zap.Logger
}

// NewSparseHandler creates the sparse handler over a registry and the
// resource store.
func NewSparseHandler(registry *SparseRegistry, store *resource.Store, logger *zap.Logger) *SparseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SparseHandler{registry: registry, store: store, logger: logger}
}

func (h *SparseHandler) ID() string { return "sparse" }

// UpdateSchema inserts every registered sparse field at its requested
// position. Registry subschemas are cloned first: per-language builds (and
// init hooks localizing titles) must not bleed into the shared pool.
func (h *SparseHandler) UpdateSchema(_ context.Context, _ *Context, schema *Schema, lang string) error {
	for _, field := range h.registry.Fields() {
		sub := field.Schema.Clone()
		sub.SetHandler(h.ID())
		if field.After == "" {
			schema.AddProperty(field.Name, sub)
		} else {
			schema.InsertAfter(field.After, field.Name, sub)
		}
		if field.Init != nil {
			field.Init(field.Name, sub, schema, lang)
		}
	}
	return nil
}

func (h *SparseHandler) LoadSerializationContext(ctx context.Context, hctx *Context, res *resource.Resource) error {
	values, err := h.store.SparseValues(ctx, res.ID)
	if err != nil {
		return err
	}
	hctx.Set(sparseValuesKey, values)
	return nil
}

func (h *SparseHandler) declaredType(field string) string {
	if f, ok := h.registry.Lookup(field); ok {
		return f.Schema.Type()
	}
	return ""
}

// GetInstanceValue coerces the stored text value to the field's declared
// JSON type. A coercion failure is recorded as a field-scoped error and the
// key is omitted.
func (h *SparseHandler) GetInstanceValue(_ context.Context, hctx *Context, _ *resource.Resource, field, _ string) (any, bool) {
	stashed, _ := hctx.Get(sparseValuesKey)
	values, _ := stashed.(map[string]string)
	raw, ok := values[field]
	if !ok {
		return nil, false
	}

	switch h.declaredType(field) {
	case "integer":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			hctx.Errors.Add(fmt.Sprintf("stored value %q is not an integer", raw), field)
			return nil, false
		}
		return n, true
	case "number":
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			hctx.Errors.Add(fmt.Sprintf("stored value %q is not a number", raw), field)
			return nil, false
		}
		return n, true
	case "array", "object":
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			hctx.Errors.Add(fmt.Sprintf("stored value is not valid JSON: %v", err), field)
			return nil, false
		}
		return decoded, true
	default:
		return raw, true
	}
}

// UpdateResource writes one sparse value, coercing by declared JSON type.
// A null value deletes the row rather than storing a null.
func (h *SparseHandler) UpdateResource(ctx context.Context, _ *Context, res *resource.Resource, field string, instance map[string]any) error {
	raw, present := instance[field]
	if !present {
		return nil
	}
	if raw == nil {
		return h.store.DeleteSparseValue(ctx, res.ID, field)
	}

	var stored string
	switch h.declaredType(field) {
	case "integer":
		n, ok := raw.(float64)
		if !ok || n != math.Trunc(n) {
			return fmt.Errorf("expected an integer, got %v", raw)
		}
		stored = strconv.FormatInt(int64(n), 10)
	case "number":
		n, ok := raw.(float64)
		if !ok {
			return fmt.Errorf("expected a number, got %v", raw)
		}
		stored = strconv.FormatFloat(n, 'f', -1, 64)
	case "array", "object":
		encoded, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("value is not encodable: %v", err)
		}
		stored = string(encoded)
	default:
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("expected a string, got %v", raw)
		}
		stored = s
	}
	return h.store.UpsertSparseValue(ctx, res.ID, field, stored)
}
