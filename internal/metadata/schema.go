package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Annotation keys stamped onto subschemas. They travel with the schema JSON
// so clients and the cached representation carry the same information.
const (
	// HandlerAnnotation identifies the handler owning a property. It is the
	// dispatch key for the serialize and deserialize passes.
	HandlerAnnotation = "geocat:handler"
	// RequiredAnnotation marks a property for the top-level required list.
	RequiredAnnotation = "geocat:required"
	// ChoicesAnnotation carries the value/label pairs of fixed-choice fields.
	ChoicesAnnotation = "geocat:choices"
	// DefaultLangAnnotation marks the generated multilang sub-field of the
	// default language.
	DefaultLangAnnotation = "geocat:default-lang"
)

const schemaDialect = "https://json-schema.org/draft/2020-12/schema"

// Subschema is the JSON payload of one schema property.
type Subschema map[string]any

// Clone returns a shallow copy. Registry entries are cloned before insertion
// so per-language schema builds never share mutable state.
func (s Subschema) Clone() Subschema {
	out := make(Subschema, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Handler returns the owning handler id, or "" if the property is untagged.
func (s Subschema) Handler() string {
	id, _ := s[HandlerAnnotation].(string)
	return id
}

// SetHandler stamps the owning handler id.
func (s Subschema) SetHandler(id string) {
	s[HandlerAnnotation] = id
}

// Type returns the declared JSON type, or "" when undeclared.
func (s Subschema) Type() string {
	t, _ := s["type"].(string)
	return t
}

// Title returns the human-readable title.
func (s Subschema) Title() string {
	t, _ := s["title"].(string)
	return t
}

// SetTitle sets the human-readable title.
func (s Subschema) SetTitle(title string) {
	s["title"] = title
}

// IsRequired reports whether the property carries the required marker.
func (s Subschema) IsRequired() bool {
	r, _ := s[RequiredAnnotation].(bool)
	return r
}

// SetRequired marks the property for the top-level required list.
func (s Subschema) SetRequired() {
	s[RequiredAnnotation] = true
}

// SetReadOnly marks the property as not editable by clients.
func (s Subschema) SetReadOnly() {
	s["readOnly"] = true
}

// IsReadOnly reports whether the property is marked read-only.
func (s Subschema) IsReadOnly() bool {
	r, _ := s["readOnly"].(bool)
	return r
}

// Schema is the mutable metadata schema document passed through the handler
// chain at build time. Property insertion order is preserved and part of the
// observable contract.
type Schema struct {
	ID    string
	Title string

	names []string
	props map[string]Subschema

	logger *zap.Logger
}

// NewSchema creates an empty schema document.
func NewSchema(id, title string, logger *zap.Logger) *Schema {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Schema{
		ID:     id,
		Title:  title,
		props:  make(map[string]Subschema),
		logger: logger,
	}
}

// Names returns the property names in insertion order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Property returns the subschema for name, or nil if absent.
func (s *Schema) Property(name string) Subschema {
	return s.props[name]
}

// AddProperty appends a property. Re-adding an existing name replaces the
// subschema but keeps its position.
func (s *Schema) AddProperty(name string, sub Subschema) {
	if _, ok := s.props[name]; !ok {
		s.names = append(s.names, name)
	}
	s.props[name] = sub
}

// InsertAfter inserts a property immediately after the anchor property.
// When the anchor does not exist the property is appended at the end and a
// warning is logged; insertion never fails.
func (s *Schema) InsertAfter(anchor, name string, sub Subschema) {
	if _, ok := s.props[name]; ok {
		// Existing property keeps its position, only the payload changes.
		s.props[name] = sub
		return
	}
	for i, n := range s.names {
		if n == anchor {
			s.names = append(s.names[:i+1], append([]string{name}, s.names[i+1:]...)...)
			s.props[name] = sub
			return
		}
	}
	s.logger.Warn("insert-after anchor not found, appending property at end",
		zap.String("property", name),
		zap.String("anchor", anchor))
	s.names = append(s.names, name)
	s.props[name] = sub
}

// Required returns the names of required properties in insertion order.
func (s *Schema) Required() []string {
	var required []string
	for _, name := range s.names {
		if s.props[name].IsRequired() {
			required = append(required, name)
		}
	}
	return required
}

// MarshalJSON renders the document with properties in insertion order and
// the required list computed from the required markers.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeField := func(key string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if err := writeField("$schema", schemaDialect); err != nil {
		return nil, err
	}
	if err := writeField("$id", s.ID); err != nil {
		return nil, err
	}
	if err := writeField("title", s.Title); err != nil {
		return nil, err
	}
	if err := writeField("type", "object"); err != nil {
		return nil, err
	}

	buf.WriteString(`,"properties":{`)
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.props[name])
		if err != nil {
			return nil, fmt.Errorf("marshal property %s: %w", name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')

	required := s.Required()
	if required == nil {
		required = []string{}
	}
	if err := writeField("required", required); err != nil {
		return nil, err
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a document preserving property order, so schemas
// round-trip through cache backends intact. The required list is recomputed
// from the markers rather than trusted from the payload.
func (s *Schema) UnmarshalJSON(data []byte) error {
	s.names = nil
	s.props = make(map[string]Subschema)
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("schema document must be a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		switch key {
		case "$id":
			if err := dec.Decode(&s.ID); err != nil {
				return err
			}
		case "title":
			if err := dec.Decode(&s.Title); err != nil {
				return err
			}
		case "properties":
			if err := s.decodeProperties(dec); err != nil {
				return err
			}
		default:
			var ignored any
			if err := dec.Decode(&ignored); err != nil {
				return err
			}
		}
	}

	_, err = dec.Token() // closing brace
	return err
}

func (s *Schema) decodeProperties(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("properties must be a JSON object")
	}

	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := nameTok.(string)

		var sub Subschema
		if err := dec.Decode(&sub); err != nil {
			return fmt.Errorf("decode property %s: %w", name, err)
		}
		s.AddProperty(name, sub)
	}

	_, err = dec.Token() // closing brace
	return err
}
