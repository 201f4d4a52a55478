package metadata

import (
	"context"

	"github.com/geocat-project/geocat/internal/resource"
)

const regionValuesKey = "region:values"

// RegionHandler owns the administrative/geographic regions property.
type RegionHandler struct {
	store *resource.Store
}

// NewRegionHandler creates the region handler.
func NewRegionHandler(store *resource.Store) *RegionHandler {
	return &RegionHandler{store: store}
}

func (h *RegionHandler) ID() string { return "region" }

func (h *RegionHandler) UpdateSchema(ctx context.Context, _ *Context, schema *Schema, lang string) error {
	regions, err := h.store.AllRegions(ctx)
	if err != nil {
		return err
	}

	choices := make([]Choice, 0, len(regions))
	for _, r := range regions {
		choices = append(choices, Choice{Value: r.ID, Label: r.Name})
	}

	sub := Subschema{
		"type":            "array",
		"title":           T(lang, "field.regions"),
		"items":           map[string]any{"type": "integer"},
		ChoicesAnnotation: choices,
	}
	sub.SetHandler(h.ID())
	schema.AddProperty("regions", sub)
	return nil
}

func (h *RegionHandler) LoadSerializationContext(ctx context.Context, hctx *Context, res *resource.Resource) error {
	regions, err := h.store.Regions(ctx, res.ID)
	if err != nil {
		return err
	}
	hctx.Set(regionValuesKey, regions)
	return nil
}

func (h *RegionHandler) GetInstanceValue(_ context.Context, hctx *Context, _ *resource.Resource, _, _ string) (any, bool) {
	stashed, _ := hctx.Get(regionValuesKey)
	regions, _ := stashed.([]resource.Region)
	ids := make([]any, 0, len(regions))
	for _, r := range regions {
		ids = append(ids, r.ID)
	}
	return ids, true
}

// UpdateResource replaces the full region set: the payload becomes
// authoritative regardless of any overlap with the previous set.
func (h *RegionHandler) UpdateResource(ctx context.Context, _ *Context, res *resource.Resource, field string, instance map[string]any) error {
	raw, present := instance[field]
	if !present {
		return nil
	}
	ids, err := asInt64Slice(raw)
	if err != nil {
		return err
	}
	return h.store.ReplaceRegions(ctx, res.ID, ids)
}
