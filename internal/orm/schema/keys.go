package schema

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// KeyAttribute is one component of a primary key
type KeyAttribute struct {
	Name string
	Type PrimitiveType
}

// KeyDescriptor is the ordered, typed shape of a model's primary key
type KeyDescriptor struct {
	Model      string
	Attributes []KeyAttribute
}

// BuildKeyDescriptor extracts the primary key of m: partition components
// first, then clustering components, each group in declaration order.
func BuildKeyDescriptor(m *Model) (KeyDescriptor, error) {
	if m == nil {
		return KeyDescriptor{}, fmt.Errorf("cannot build key descriptor of nil model")
	}

	kd := KeyDescriptor{Model: m.Name}
	for _, role := range []KeyRole{KeyPartition, KeyClustering} {
		for _, f := range m.Fields {
			if f.Key == role {
				kd.Attributes = append(kd.Attributes, KeyAttribute{Name: f.Name, Type: f.Type})
			}
		}
	}

	if len(kd.Attributes) == 0 {
		return KeyDescriptor{}, &EmptyKeyError{Model: m.Name}
	}
	return kd, nil
}

// Len returns the number of key attributes
func (kd KeyDescriptor) Len() int {
	return len(kd.Attributes)
}

// IsComposite returns true for keys made of more than one attribute
func (kd KeyDescriptor) IsComposite() bool {
	return len(kd.Attributes) > 1
}

// Names returns attribute names in key order
func (kd KeyDescriptor) Names() []string {
	names := make([]string, len(kd.Attributes))
	for i, a := range kd.Attributes {
		names[i] = a.Name
	}
	return names
}

// Attribute returns the key attribute with the given name
func (kd KeyDescriptor) Attribute(name string) (KeyAttribute, bool) {
	for _, a := range kd.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return KeyAttribute{}, false
}

// Equal reports structural equality
func (kd KeyDescriptor) Equal(other KeyDescriptor) bool {
	if kd.Model != other.Model || len(kd.Attributes) != len(other.Attributes) {
		return false
	}
	for i := range kd.Attributes {
		if kd.Attributes[i] != other.Attributes[i] {
			return false
		}
	}
	return true
}

// String renders the descriptor as "Model(a: text, b: uuid)"
func (kd KeyDescriptor) String() string {
	parts := make([]string, len(kd.Attributes))
	for i, a := range kd.Attributes {
		parts[i] = a.Name + ": " + a.Type.String()
	}
	return fmt.Sprintf("%s(%s)", kd.Model, strings.Join(parts, ", "))
}

// Missing returns the key attributes absent from km, in key order
func (kd KeyDescriptor) Missing(km KeyMapping) []string {
	var missing []string
	for _, a := range kd.Attributes {
		if !km.Has(a.Name) {
			missing = append(missing, a.Name)
		}
	}
	return missing
}

// Extra returns the names in km that are not key attributes
func (kd KeyDescriptor) Extra(km KeyMapping) []string {
	var extra []string
	for _, name := range km.Names() {
		if _, ok := kd.Attribute(name); !ok {
			extra = append(extra, name)
		}
	}
	return extra
}

// Instance is a live, in-memory record exposing its key attributes by name
type Instance interface {
	ModelName() string
	Engine() string
	KeyValue(name string) (interface{}, bool)
}

// KeyMapping is an insertion-ordered mapping from key attribute name to value.
// The zero value is an empty mapping ready to use. Copies are independent:
// Set never writes to storage another copy may hold.
type KeyMapping struct {
	names  []string
	values map[string]interface{}
}

// KeyValue is a single name/value pair
type KeyValue struct {
	Name  string
	Value interface{}
}

// NewKeyMapping builds a mapping from pairs, keeping their order
func NewKeyMapping(pairs ...KeyValue) KeyMapping {
	var km KeyMapping
	for _, p := range pairs {
		km.Set(p.Name, p.Value)
	}
	return km
}

// KeyMappingFrom builds a mapping from an unordered map. Names are sorted so
// that the result is deterministic.
func KeyMappingFrom(m map[string]interface{}) KeyMapping {
	var km KeyMapping
	for _, name := range sortedKeys(m) {
		km.Set(name, m[name])
	}
	return km
}

// Set adds or replaces a value. A new name goes to the end.
func (km *KeyMapping) Set(name string, value interface{}) {
	names := make([]string, len(km.names), len(km.names)+1)
	copy(names, km.names)
	values := make(map[string]interface{}, len(km.values)+1)
	for k, v := range km.values {
		values[k] = v
	}

	if _, ok := values[name]; !ok {
		names = append(names, name)
	}
	values[name] = value
	km.names, km.values = names, values
}

// Get returns the value stored under name
func (km KeyMapping) Get(name string) (interface{}, bool) {
	v, ok := km.values[name]
	return v, ok
}

// Has returns true if name is present
func (km KeyMapping) Has(name string) bool {
	_, ok := km.values[name]
	return ok
}

// Len returns the number of entries
func (km KeyMapping) Len() int {
	return len(km.names)
}

// Names returns entry names in order
func (km KeyMapping) Names() []string {
	out := make([]string, len(km.names))
	copy(out, km.names)
	return out
}

// Pairs returns entries in order
func (km KeyMapping) Pairs() []KeyValue {
	out := make([]KeyValue, len(km.names))
	for i, name := range km.names {
		out[i] = KeyValue{Name: name, Value: km.values[name]}
	}
	return out
}

// Map returns an unordered copy, suitable as keyword arguments for a lookup
func (km KeyMapping) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(km.names))
	for name, v := range km.values {
		out[name] = v
	}
	return out
}

// Equal reports whether both mappings hold the same entries in the same order.
// time.Time values are compared with Equal, everything else deeply.
func (km KeyMapping) Equal(other KeyMapping) bool {
	if len(km.names) != len(other.names) {
		return false
	}
	for i, name := range km.names {
		if other.names[i] != name {
			return false
		}
		if !ValuesEqual(km.values[name], other.values[name]) {
			return false
		}
	}
	return true
}

// String renders the mapping as {a: 1, b: 2}
func (km KeyMapping) String() string {
	parts := make([]string, len(km.names))
	for i, name := range km.names {
		parts[i] = fmt.Sprintf("%s: %v", name, km.values[name])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON writes a JSON object with keys in mapping order
func (km KeyMapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range km.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(km.values[name])
		if err != nil {
			return nil, fmt.Errorf("key attribute %s: %w", name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the document's key order.
// Numbers are kept as json.Number.
func (km *KeyMapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*km = KeyMapping{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("key mapping must be a JSON object")
	}

	var out KeyMapping
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("key mapping: unexpected token %v", tok)
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("key attribute %s: %w", name, err)
		}
		out.Set(name, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*km = out
	return nil
}

// Value implements driver.Valuer; a mapping is stored as JSON text
func (km KeyMapping) Value() (driver.Value, error) {
	b, err := km.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (km *KeyMapping) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*km = KeyMapping{}
		return nil
	case []byte:
		return km.UnmarshalJSON(v)
	case string:
		return km.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into key mapping", src)
	}
}

// ValuesEqual compares two key values; timestamps compare as instants
func ValuesEqual(a, b interface{}) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
