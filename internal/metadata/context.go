package metadata

// Context is the short-lived scratch space shared by every handler within a
// single schema-build, serialize or deserialize pass. Handlers stash
// precomputed lookups under handler-chosen keys and may read back what an
// earlier handler's pre-pass produced. It is created fresh per pass and
// discarded afterwards, never persisted.
type Context struct {
	// Errors collects everything the pass wants reported to the caller.
	Errors ErrorMap

	values map[string]any
}

// NewContext creates an empty pass context.
func NewContext() *Context {
	return &Context{
		Errors: NewErrorMap(),
		values: make(map[string]any),
	}
}

// Set stores a value under key. Handlers namespace their keys with their id
// ("contact:roles") to stay out of each other's way.
func (c *Context) Set(key string, value any) {
	c.values[key] = value
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}
