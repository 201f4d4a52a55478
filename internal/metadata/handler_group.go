package metadata

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/geocat-project/geocat/internal/resource"
)

// GroupHandler owns the owning-group property. A resource without a group
// serializes the key as an explicit null, not as an omitted key.
type GroupHandler struct{}

// NewGroupHandler creates the group handler.
func NewGroupHandler() *GroupHandler {
	return &GroupHandler{}
}

func (h *GroupHandler) ID() string { return "group" }

func (h *GroupHandler) UpdateSchema(_ context.Context, _ *Context, schema *Schema, lang string) error {
	sub := Subschema{
		"type":  "integer",
		"title": T(lang, "field.group"),
	}
	sub.SetHandler(h.ID())
	schema.AddProperty("group", sub)
	return nil
}

func (h *GroupHandler) GetInstanceValue(_ context.Context, _ *Context, res *resource.Resource, _, _ string) (any, bool) {
	if !res.GroupID.Valid {
		return nil, true
	}
	return res.GroupID.Int64, true
}

func (h *GroupHandler) UpdateResource(_ context.Context, _ *Context, res *resource.Resource, field string, instance map[string]any) error {
	raw, present := instance[field]
	if !present {
		return nil
	}
	if raw == nil {
		res.GroupID = sql.NullInt64{}
		return nil
	}
	id, ok := asInt64(raw)
	if !ok {
		return fmt.Errorf("expected an integer group id")
	}
	res.GroupID = sql.NullInt64{Int64: id, Valid: true}
	return nil
}
