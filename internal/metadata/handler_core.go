package metadata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/geocat-project/geocat/internal/resource"
)

// CoreHandler owns the column-backed base fields of every resource.
type CoreHandler struct {
	languages []Choice
}

// NewCoreHandler creates the core handler. languages drives the choice list
// of the language field.
func NewCoreHandler(languages map[string]string) *CoreHandler {
	codes := make([]string, 0, len(languages))
	for code := range languages {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	choices := make([]Choice, 0, len(codes))
	for _, code := range codes {
		choices = append(choices, Choice{Value: code, Label: languages[code]})
	}
	return &CoreHandler{languages: choices}
}

func (h *CoreHandler) ID() string { return "core" }

var dateTypeChoices = []Choice{
	{Value: "creation", Label: "Creation"},
	{Value: "publication", Label: "Publication"},
	{Value: "revision", Label: "Revision"},
}

func (h *CoreHandler) UpdateSchema(_ context.Context, _ *Context, schema *Schema, lang string) error {
	add := func(name string, sub Subschema) {
		sub.SetHandler(h.ID())
		schema.AddProperty(name, sub)
	}

	title := Subschema{"type": "string", "title": T(lang, "field.title"), "maxLength": 255}
	title.SetRequired()
	add("title", title)

	add("abstract", Subschema{"type": "string", "title": T(lang, "field.abstract")})
	add("purpose", Subschema{"type": "string", "title": T(lang, "field.purpose")})
	add("language", Subschema{
		"type": "string", "title": T(lang, "field.language"),
		ChoicesAnnotation: h.languages,
	})
	add("date", Subschema{
		"type": "string", "format": "date-time", "title": T(lang, "field.date"),
	})
	add("date_type", Subschema{
		"type": "string", "title": T(lang, "field.date_type"),
		ChoicesAnnotation: dateTypeChoices,
	})
	add("edition", Subschema{"type": "string", "title": T(lang, "field.edition")})
	add("attribution", Subschema{"type": "string", "title": T(lang, "field.attribution")})
	add("license", Subschema{"type": "string", "title": T(lang, "field.license")})
	add("restrictions", Subschema{"type": "string", "title": T(lang, "field.restrictions")})
	return nil
}

func (h *CoreHandler) GetInstanceValue(_ context.Context, _ *Context, res *resource.Resource, field, _ string) (any, bool) {
	switch field {
	case "title":
		return res.Title, true
	case "abstract":
		return res.Abstract, true
	case "purpose":
		return res.Purpose, true
	case "language":
		return res.Language, true
	case "date":
		if res.Date.IsZero() {
			return nil, false
		}
		return res.Date.Format(time.RFC3339), true
	case "date_type":
		return res.DateType, true
	case "edition":
		return res.Edition, true
	case "attribution":
		return res.Attribution, true
	case "license":
		return res.License, true
	case "restrictions":
		return res.Restrictions, true
	}
	return nil, false
}

func (h *CoreHandler) UpdateResource(_ context.Context, _ *Context, res *resource.Resource, field string, instance map[string]any) error {
	raw, present := instance[field]
	if !present {
		return nil
	}

	if field == "date" {
		if raw == nil {
			res.Date = time.Time{}
			return nil
		}
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("expected a date-time string")
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid date-time %q: %v", s, err)
		}
		res.Date = parsed
		return nil
	}

	value := ""
	if raw != nil {
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("expected a string")
		}
		value = s
	}

	switch field {
	case "title":
		res.Title = value
	case "abstract":
		res.Abstract = value
	case "purpose":
		res.Purpose = value
	case "language":
		res.Language = value
	case "date_type":
		res.DateType = value
	case "edition":
		res.Edition = value
	case "attribution":
		res.Attribution = value
	case "license":
		res.License = value
	case "restrictions":
		res.Restrictions = value
	}
	return nil
}
