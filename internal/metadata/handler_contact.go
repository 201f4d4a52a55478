package metadata

import (
	"context"
	"fmt"

	"github.com/geocat-project/geocat/internal/resource"
)

const (
	contactRolesKey = "contact:roles"
	contactOwnerKey = "contact:owner"
)

// role describes one entry of the fixed role enumeration. The owner role is
// single-valued and writes straight to the resource's owner attribute; every
// other role is many-valued and lives in the role side relation.
type role struct {
	name     string
	titleKey string
	single   bool
}

var contactRoles = []role{
	{name: "owner", titleKey: "field.owner", single: true},
	{name: "pointOfContact", titleKey: "field.poc"},
	{name: "author", titleKey: "field.author"},
	{name: "distributor", titleKey: "field.distributor"},
}

// ContactHandler owns one schema property per metadata role.
type ContactHandler struct {
	store *resource.Store
}

// NewContactHandler creates the contact/roles handler.
func NewContactHandler(store *resource.Store) *ContactHandler {
	return &ContactHandler{store: store}
}

func (h *ContactHandler) ID() string { return "contact" }

func contactSubschema() Subschema {
	return Subschema{
		"type": "object",
		"properties": map[string]any{
			"id":    map[string]any{"type": "integer"},
			"name":  map[string]any{"type": "string", "readOnly": true},
			"email": map[string]any{"type": "string", "readOnly": true},
		},
	}
}

func (h *ContactHandler) UpdateSchema(_ context.Context, _ *Context, schema *Schema, lang string) error {
	for _, r := range contactRoles {
		var sub Subschema
		if r.single {
			sub = contactSubschema()
		} else {
			sub = Subschema{"type": "array", "items": map[string]any(contactSubschema())}
		}
		sub.SetTitle(T(lang, r.titleKey))
		sub.SetHandler(h.ID())
		schema.AddProperty(r.name, sub)
	}
	return nil
}

// LoadSerializationContext batch-loads every role relation plus the owner
// contact in two queries, so the per-property reads below touch no storage.
func (h *ContactHandler) LoadSerializationContext(ctx context.Context, hctx *Context, res *resource.Resource) error {
	roles, err := h.store.ContactsByRole(ctx, res.ID)
	if err != nil {
		return err
	}
	hctx.Set(contactRolesKey, roles)

	owner, err := h.store.Contact(ctx, res.OwnerID)
	if err != nil {
		hctx.Errors.Add(fmt.Sprintf("owner contact %d could not be loaded: %v", res.OwnerID, err), "owner")
		return nil
	}
	hctx.Set(contactOwnerKey, owner)
	return nil
}

func contactJSON(c resource.Contact) map[string]any {
	return map[string]any{"id": c.ID, "name": c.Name, "email": c.Email}
}

func (h *ContactHandler) GetInstanceValue(_ context.Context, hctx *Context, _ *resource.Resource, field, _ string) (any, bool) {
	if field == "owner" {
		owner, ok := hctx.Get(contactOwnerKey)
		if !ok {
			return nil, false
		}
		return contactJSON(*owner.(*resource.Contact)), true
	}

	stashed, _ := hctx.Get(contactRolesKey)
	roles, _ := stashed.(map[string][]resource.Contact)
	contacts := roles[field]
	out := make([]any, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, contactJSON(c))
	}
	return out, true
}

func (h *ContactHandler) UpdateResource(ctx context.Context, _ *Context, res *resource.Resource, field string, instance map[string]any) error {
	raw, present := instance[field]
	if !present {
		return nil
	}

	if field == "owner" {
		obj, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("expected a contact object")
		}
		id, ok := asInt64(obj["id"])
		if !ok {
			return fmt.Errorf("owner contact needs an integer id")
		}
		res.OwnerID = id
		return nil
	}

	// Many-valued roles: the payload set becomes authoritative.
	ids, err := asInt64Slice(raw)
	if err != nil {
		return err
	}
	return h.store.ReplaceRoleContacts(ctx, res.ID, field, ids)
}
