package metadata

// SparseFieldInit is invoked while a registered sparse field is inserted
// into a schema, once per schema build. It may localize the subschema or
// inspect already-inserted properties.
type SparseFieldInit func(name string, sub Subschema, schema *Schema, lang string)

// SparseField is one entry of the sparse field pool: the subschema to
// insert, the property to insert it after, and an optional init hook.
type SparseField struct {
	Name   string
	Schema Subschema
	After  string
	Init   SparseFieldInit
}

// SparseRegistry is the ordered pool of dynamically registered schema
// properties consumed by the sparse handler at schema-build time. Extension
// modules (multilang, INSPIRE) register into it at wiring time; it is
// treated as read-only during request handling.
type SparseRegistry struct {
	names  []string
	fields map[string]SparseField
}

// NewSparseRegistry creates an empty registry. Construct one per process
// (or per test) and pass it by reference to whatever registers into it.
func NewSparseRegistry() *SparseRegistry {
	return &SparseRegistry{fields: make(map[string]SparseField)}
}

// Register adds a field to the pool. Re-registering a name overwrites the
// entry but keeps its position.
func (r *SparseRegistry) Register(field SparseField) {
	if _, ok := r.fields[field.Name]; !ok {
		r.names = append(r.names, field.Name)
	}
	r.fields[field.Name] = field
}

// Fields returns the pool in registration order.
func (r *SparseRegistry) Fields() []SparseField {
	out := make([]SparseField, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.fields[name])
	}
	return out
}

// Lookup returns the entry registered under name.
func (r *SparseRegistry) Lookup(name string) (SparseField, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// Len returns the number of registered fields.
func (r *SparseRegistry) Len() int {
	return len(r.names)
}
