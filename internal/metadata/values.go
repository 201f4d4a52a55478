package metadata

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/geocat-project/geocat/internal/resource"
)

// Choice is one entry of a fixed-choice list carried in the
// ChoicesAnnotation of a subschema.
type Choice struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

// asInt64 converts a decoded JSON value to an integer id. JSON numbers
// arrive as float64; ids embedded in objects may also come as json.Number.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// asInt64Slice converts a decoded JSON array to integer ids. Array entries
// may be bare numbers or objects carrying an "id" member.
func asInt64Slice(v any) ([]int64, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array")
	}
	ids := make([]int64, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			item = obj["id"]
		}
		id, ok := asInt64(item)
		if !ok {
			return nil, fmt.Errorf("expected an integer id, got %v", item)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// asStringSlice converts a decoded JSON array to strings.
func asStringSlice(v any) ([]string, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array")
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %v", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// setBaseField writes one column-backed text field of a resource by name.
// Used by the multilang handler to copy the default-language entry back into
// the base field.
func setBaseField(res *resource.Resource, field, value string) bool {
	switch field {
	case "title":
		res.Title = value
	case "abstract":
		res.Abstract = value
	case "purpose":
		res.Purpose = value
	case "edition":
		res.Edition = value
	case "attribution":
		res.Attribution = value
	default:
		return false
	}
	return true
}
