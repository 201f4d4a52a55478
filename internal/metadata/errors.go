package metadata

// ErrorsKey is the reserved key holding the message list at each level of
// the nested error map.
const ErrorsKey = "__errors"

// ErrorMap is the nested field-path to message-list mapping returned to
// callers. An empty map means the operation is considered fully successful;
// a non-empty map does not necessarily mean nothing was persisted.
type ErrorMap map[string]any

// NewErrorMap creates an empty error map.
func NewErrorMap() ErrorMap {
	return make(ErrorMap)
}

// Add appends a message under the given field path. With no path the message
// lands in the top-level message list.
func (e ErrorMap) Add(message string, path ...string) {
	node := map[string]any(e)
	for _, segment := range path {
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[segment] = child
		}
		node = child
	}
	list, _ := node[ErrorsKey].([]string)
	node[ErrorsKey] = append(list, message)
}

// Empty reports whether no errors were recorded.
func (e ErrorMap) Empty() bool {
	return len(e) == 0
}

// At returns the messages recorded directly under the given field path.
func (e ErrorMap) At(path ...string) []string {
	node := map[string]any(e)
	for _, segment := range path {
		child, ok := node[segment].(map[string]any)
		if !ok {
			return nil
		}
		node = child
	}
	list, _ := node[ErrorsKey].([]string)
	return list
}
