package metadata

import (
	"context"

	"github.com/geocat-project/geocat/internal/resource"
)

const linkValuesKey = "linked:values"

// LinkedResourceHandler owns the user-managed links between resources.
// Internal links (system-managed, e.g. created at publish time) are shown
// nowhere in the editable property and are never disturbed by a replace.
type LinkedResourceHandler struct {
	store *resource.Store
}

// NewLinkedResourceHandler creates the linked-resources handler.
func NewLinkedResourceHandler(store *resource.Store) *LinkedResourceHandler {
	return &LinkedResourceHandler{store: store}
}

func (h *LinkedResourceHandler) ID() string { return "linkedresource" }

func (h *LinkedResourceHandler) UpdateSchema(_ context.Context, _ *Context, schema *Schema, lang string) error {
	sub := Subschema{
		"type":  "array",
		"title": T(lang, "field.linked"),
		"items": map[string]any{"type": "integer"},
	}
	sub.SetHandler(h.ID())
	schema.AddProperty("linkedResources", sub)
	return nil
}

func (h *LinkedResourceHandler) LoadSerializationContext(ctx context.Context, hctx *Context, res *resource.Resource) error {
	links, err := h.store.Links(ctx, res.ID)
	if err != nil {
		return err
	}
	hctx.Set(linkValuesKey, links)
	return nil
}

func (h *LinkedResourceHandler) GetInstanceValue(_ context.Context, hctx *Context, _ *resource.Resource, _, _ string) (any, bool) {
	stashed, _ := hctx.Get(linkValuesKey)
	links, _ := stashed.([]resource.Link)
	ids := make([]any, 0, len(links))
	for _, l := range links {
		if l.Internal {
			continue
		}
		ids = append(ids, l.TargetID)
	}
	return ids, true
}

// UpdateResource replaces the full set of user-managed links; internal
// links survive untouched.
func (h *LinkedResourceHandler) UpdateResource(ctx context.Context, _ *Context, res *resource.Resource, field string, instance map[string]any) error {
	raw, present := instance[field]
	if !present {
		return nil
	}
	ids, err := asInt64Slice(raw)
	if err != nil {
		return err
	}
	return h.store.ReplaceLinks(ctx, res.ID, ids)
}
