package metadata

import (
	"context"
	"fmt"

	"github.com/geocat-project/geocat/internal/resource"
)

// DOIHandler owns the digital object identifier property.
type DOIHandler struct{}

// NewDOIHandler creates the DOI handler.
func NewDOIHandler() *DOIHandler {
	return &DOIHandler{}
}

func (h *DOIHandler) ID() string { return "doi" }

func (h *DOIHandler) UpdateSchema(_ context.Context, _ *Context, schema *Schema, lang string) error {
	sub := Subschema{
		"type":    "string",
		"title":   T(lang, "field.doi"),
		"pattern": `^10\..+`,
	}
	sub.SetHandler(h.ID())
	schema.AddProperty("doi", sub)
	return nil
}

// GetInstanceValue signals "unset" for a resource without a DOI: the key is
// omitted from the instance rather than serialized as an empty string.
func (h *DOIHandler) GetInstanceValue(_ context.Context, _ *Context, res *resource.Resource, _, _ string) (any, bool) {
	if res.DOI == "" {
		return nil, false
	}
	return res.DOI, true
}

func (h *DOIHandler) UpdateResource(_ context.Context, _ *Context, res *resource.Resource, field string, instance map[string]any) error {
	raw, present := instance[field]
	if !present {
		return nil
	}
	if raw == nil {
		res.DOI = ""
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return fmt.Errorf("expected a string")
	}
	res.DOI = s
	return nil
}
