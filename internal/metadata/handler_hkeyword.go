package metadata

import (
	"context"

	"github.com/geocat-project/geocat/internal/resource"
)

const hkeywordValuesKey = "hkeyword:values"

// HKeywordHandler owns the free-form hierarchical keywords property.
type HKeywordHandler struct {
	store *resource.Store
}

// NewHKeywordHandler creates the free-keyword handler.
func NewHKeywordHandler(store *resource.Store) *HKeywordHandler {
	return &HKeywordHandler{store: store}
}

func (h *HKeywordHandler) ID() string { return "hkeyword" }

func (h *HKeywordHandler) UpdateSchema(_ context.Context, _ *Context, schema *Schema, lang string) error {
	sub := Subschema{
		"type":  "array",
		"title": T(lang, "field.keywords"),
		"items": map[string]any{"type": "string"},
	}
	sub.SetHandler(h.ID())
	schema.AddProperty("keywords", sub)
	return nil
}

func (h *HKeywordHandler) LoadSerializationContext(ctx context.Context, hctx *Context, res *resource.Resource) error {
	keywords, err := h.store.Keywords(ctx, res.ID)
	if err != nil {
		return err
	}
	hctx.Set(hkeywordValuesKey, keywords)
	return nil
}

func (h *HKeywordHandler) GetInstanceValue(_ context.Context, hctx *Context, _ *resource.Resource, _, _ string) (any, bool) {
	stashed, _ := hctx.Get(hkeywordValuesKey)
	keywords, _ := stashed.([]string)
	out := make([]any, 0, len(keywords))
	for _, k := range keywords {
		out = append(out, k)
	}
	return out, true
}

func (h *HKeywordHandler) UpdateResource(ctx context.Context, _ *Context, res *resource.Resource, field string, instance map[string]any) error {
	raw, present := instance[field]
	if !present {
		return nil
	}
	keywords, err := asStringSlice(raw)
	if err != nil {
		return err
	}
	return h.store.ReplaceKeywords(ctx, res.ID, keywords)
}
