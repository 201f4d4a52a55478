package metadata

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/geocat-project/geocat/internal/resource"
)

// MultiLangFieldName returns the generated sub-field name for a base field
// and a language code.
func MultiLangFieldName(field, lang string) string {
	return fmt.Sprintf("%s_multilang_%s", field, lang)
}

// MultiLangHandler turns configured base fields into one generated sparse
// sub-field per supported language. The base field stays in the schema as a
// derived, read-only property; the default language's entry is copied back
// into it on save so non-multilang-aware code keeps working.
//
// It must be registered after the sparse handler: the generated fields live
// in the sparse registry and their serialized values come from the sparse
// handler's context pre-pass.
type MultiLangHandler struct {
	fields      []string
	langs       []string
	defaultLang string
	logger      *zap.Logger
}

// NewMultiLangHandler creates the handler and registers every generated
// sub-field into the sparse registry. Registration happens here, at wiring
// time, never per request.
func NewMultiLangHandler(fields, langs []string, defaultLang string, registry *SparseRegistry, logger *zap.Logger) *MultiLangHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &MultiLangHandler{
		fields:      fields,
		langs:       langs,
		defaultLang: defaultLang,
		logger:      logger,
	}

	for _, field := range fields {
		after := field
		for _, lang := range langs {
			name := MultiLangFieldName(field, lang)
			registry.Register(SparseField{
				Name:   name,
				Schema: Subschema{"type": "string"},
				After:  after,
				Init:   h.initField(field, lang),
			})
			// Chain the anchors so the generated fields stay adjacent to
			// their base field in language order.
			after = name
		}
	}
	return h
}

// initField localizes the generated field's title to "{parent title}
// [{LANG}]" and marks the default language's entry. Runs once per schema
// build, not at serialize time.
func (h *MultiLangHandler) initField(base, lang string) SparseFieldInit {
	return func(name string, sub Subschema, schema *Schema, _ string) {
		title := base
		if parent := schema.Property(base); parent != nil && parent.Title() != "" {
			title = parent.Title()
		}
		sub.SetTitle(fmt.Sprintf("%s [%s]", title, strings.ToUpper(lang)))
		if lang == h.defaultLang {
			sub[DefaultLangAnnotation] = true
		}
	}
}

func (h *MultiLangHandler) ID() string { return "multilang" }

// UpdateSchema marks every base field read-only: it is derived from the
// generated per-language fields, not directly editable.
func (h *MultiLangHandler) UpdateSchema(_ context.Context, _ *Context, schema *Schema, _ string) error {
	for _, field := range h.fields {
		sub := schema.Property(field)
		if sub == nil {
			h.logger.Warn("multilang base field missing from schema", zap.String("field", field))
			continue
		}
		sub.SetReadOnly()
	}
	return nil
}

// LoadSerializationContext back-fills empty per-language entries from
// whatever other language has content, so a field is never empty across all
// languages when at least one had content. It mutates the value map the
// sparse handler stashed, which is why this handler registers after it.
func (h *MultiLangHandler) LoadSerializationContext(_ context.Context, hctx *Context, res *resource.Resource) error {
	stashed, ok := hctx.Get(sparseValuesKey)
	if !ok {
		return fmt.Errorf("sparse values not loaded; is the sparse handler registered before multilang?")
	}
	values, _ := stashed.(map[string]string)

	for _, field := range h.fields {
		fallback := ""
		for _, lang := range h.langs {
			if v := values[MultiLangFieldName(field, lang)]; v != "" {
				fallback = v
				break
			}
		}
		if fallback == "" {
			// No language has content: leave the base column value as the
			// only representation.
			fallback = baseFieldValue(res, field)
		}
		if fallback == "" {
			continue
		}
		for _, lang := range h.langs {
			name := MultiLangFieldName(field, lang)
			if values[name] == "" {
				values[name] = fallback
			}
		}
	}
	return nil
}

// GetInstanceValue is never routed here: the generated fields are owned by
// the sparse handler and the base fields by core.
func (h *MultiLangHandler) GetInstanceValue(context.Context, *Context, *resource.Resource, string, string) (any, bool) {
	return nil, false
}

// UpdateResource is never routed here for the same reason.
func (h *MultiLangHandler) UpdateResource(context.Context, *Context, *resource.Resource, string, map[string]any) error {
	return nil
}

// PreSave copies the default-language entry of every multilang field back
// into the base column so code paths reading the plain column stay correct.
func (h *MultiLangHandler) PreSave(_ context.Context, _ *Context, res *resource.Resource, instance map[string]any) error {
	for _, field := range h.fields {
		raw, present := instance[MultiLangFieldName(field, h.defaultLang)]
		if !present {
			continue
		}
		value, ok := raw.(string)
		if !ok {
			continue
		}
		if !setBaseField(res, field, value) {
			h.logger.Warn("multilang base field is not column-backed", zap.String("field", field))
		}
	}
	return nil
}

func baseFieldValue(res *resource.Resource, field string) string {
	switch field {
	case "title":
		return res.Title
	case "abstract":
		return res.Abstract
	case "purpose":
		return res.Purpose
	case "edition":
		return res.Edition
	case "attribution":
		return res.Attribution
	}
	return ""
}
