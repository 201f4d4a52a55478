package metadata

import (
	"context"

	"github.com/geocat-project/geocat/internal/resource"
)

// Handler owns a disjoint slice of the metadata schema and the corresponding
// serialize/deserialize logic. Handlers are visited in registration order in
// every pass; later handlers may rely on schema and context state produced
// by earlier ones.
type Handler interface {
	// ID is the registration id stamped onto every subschema this handler
	// inserts. It is the dispatch key for the later passes.
	ID() string

	// UpdateSchema inserts or modifies zero or more properties of the shared
	// schema document. An error aborts the whole schema build: a broken
	// schema is never cached or served.
	UpdateSchema(ctx context.Context, hctx *Context, schema *Schema, lang string) error

	// GetInstanceValue reads the current value of one owned property. The
	// second return distinguishes "unset" (false: the key is omitted from
	// the instance) from a present value, including a present null
	// (nil, true). Problems are recorded into hctx.Errors under the field's
	// path, never returned as Go errors.
	GetInstanceValue(ctx context.Context, hctx *Context, res *resource.Resource, field, lang string) (any, bool)

	// UpdateResource applies one property's worth of write-side effects to
	// the in-memory resource or a side table. It must not save the resource
	// itself; that is centralized in the manager. A returned error is
	// recorded as a field-scoped error and does not block sibling fields.
	UpdateResource(ctx context.Context, hctx *Context, res *resource.Resource, field string, instance map[string]any) error
}

// SerializationContextLoader is implemented by handlers that batch-load data
// before the per-property serialize loop.
type SerializationContextLoader interface {
	LoadSerializationContext(ctx context.Context, hctx *Context, res *resource.Resource) error
}

// DeserializationContextLoader is implemented by handlers that batch-load
// data before the per-property deserialize loop.
type DeserializationContextLoader interface {
	LoadDeserializationContext(ctx context.Context, hctx *Context, res *resource.Resource) error
}

// PreSaver is implemented by handlers that need a hook right before the
// resource row is saved. It runs for every implementing handler regardless
// of which fields were touched.
type PreSaver interface {
	PreSave(ctx context.Context, hctx *Context, res *resource.Resource, instance map[string]any) error
}

// PostSaver is implemented by handlers that need a hook right after the
// resource row is saved, e.g. for cross-cutting effects like reindexing.
type PostSaver interface {
	PostSave(ctx context.Context, hctx *Context, res *resource.Resource, instance map[string]any) error
}
