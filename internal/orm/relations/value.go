// Package relations implements relation columns: fields that store the key of
// a record in another model, possibly in another storage engine.
//
// Three codecs share the Column hook contract used by the host framework:
//
//   - ScalarCodec: targets with a single-attribute key, stored as a plain scalar
//   - CompositeCodec: targets with a multi-attribute key, stored as an ordered
//     mapping of attribute name to text
//   - CrossStoreCodec: like ScalarCodec, for targets living in another engine
//
// Codecs only produce and consume keys. Fetching the referenced record is up
// to the application, through the target store's own lookup.
package relations

import (
	"fmt"

	"github.com/conduit-lang/relations/internal/orm/schema"
)

// ValueKind discriminates the variants of a Value
type ValueKind int

const (
	// KindNull is the absent value
	KindNull ValueKind = iota
	// KindInstance wraps a live record of the target model
	KindInstance
	// KindKey wraps a key mapping
	KindKey
	// KindScalar wraps a single key value
	KindScalar
)

// String returns the string representation of the kind
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInstance:
		return "instance"
	case KindKey:
		return "key mapping"
	case KindScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// Value is what a relation column holds: nothing, a live instance, a key
// mapping or a scalar key. The zero Value is null.
type Value struct {
	kind     ValueKind
	instance schema.Instance
	key      schema.KeyMapping
	scalar   interface{}
}

// Null returns the absent value
func Null() Value {
	return Value{}
}

// FromInstance wraps a live record. A nil instance is null.
func FromInstance(inst schema.Instance) Value {
	if inst == nil {
		return Value{}
	}
	return Value{kind: KindInstance, instance: inst}
}

// FromKey wraps a key mapping
func FromKey(km schema.KeyMapping) Value {
	return Value{kind: KindKey, key: km}
}

// FromScalar wraps a single key value. A nil scalar is null.
func FromScalar(v interface{}) Value {
	if v == nil {
		return Value{}
	}
	return Value{kind: KindScalar, scalar: v}
}

// Of discriminates an untyped assignment: a Value is returned as is, an
// Instance or a KeyMapping (or a plain map) is wrapped accordingly and
// anything else becomes a scalar.
func Of(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case *Value:
		if x == nil {
			return Null()
		}
		return *x
	case schema.Instance:
		return FromInstance(x)
	case schema.KeyMapping:
		return FromKey(x)
	case *schema.KeyMapping:
		if x == nil {
			return Null()
		}
		return FromKey(*x)
	case map[string]interface{}:
		return FromKey(schema.KeyMappingFrom(x))
	default:
		return FromScalar(v)
	}
}

// Kind returns the variant held
func (v Value) Kind() ValueKind { return v.kind }

// IsNull returns true for the absent value
func (v Value) IsNull() bool { return v.kind == KindNull }

// Instance returns the wrapped instance, or nil
func (v Value) Instance() schema.Instance { return v.instance }

// Key returns the wrapped key mapping; empty unless Kind is KindKey
func (v Value) Key() schema.KeyMapping { return v.key }

// Scalar returns the wrapped scalar, or nil
func (v Value) Scalar() interface{} { return v.scalar }

// String renders the value for logs and CLI output
func (v Value) String() string {
	switch v.kind {
	case KindInstance:
		return fmt.Sprintf("<%s instance>", v.instance.ModelName())
	case KindKey:
		return v.key.String()
	case KindScalar:
		return fmt.Sprintf("%v", v.scalar)
	default:
		return "null"
	}
}

// Equal compares two values of the same kind. Instances compare by identity.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInstance:
		return v.instance == other.instance
	case KindKey:
		return v.key.Equal(other.key)
	default:
		return schema.ValuesEqual(v.scalar, other.scalar)
	}
}
