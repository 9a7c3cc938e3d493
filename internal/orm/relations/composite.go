package relations

import (
	"encoding/json"
	"fmt"

	"github.com/conduit-lang/relations/internal/orm/schema"
)

// CompositeCodec points at a record whose primary key spans several
// attributes. Every key component is stored as text in an ordered mapping
// (ASCII attribute names, text values), in the target's declared key order.
type CompositeCodec struct {
	base
}

// NewComposite declares a composite relation column. Secondary indexes are
// refused: matching on a mapping column is not strict enough to identify a
// record.
func NewComposite(name string, target *Target, opts Options) (*CompositeCodec, error) {
	if opts.Indexed {
		return nil, fmt.Errorf("relation %s: %w", name, ErrIndexedComposite)
	}
	b, err := newBase(name, target, opts)
	if err != nil {
		return nil, err
	}
	return &CompositeCodec{base: b}, nil
}

// Variant returns VariantComposite
func (c *CompositeCodec) Variant() Variant { return VariantComposite }

// Validate accepts a live instance of the target model or a key mapping
// holding exactly the key attributes. It returns a key mapping of native
// values in declared order.
func (c *CompositeCodec) Validate(v Value) (Value, error) {
	if v.IsNull() {
		return c.checkNull()
	}

	model, kd, err := c.resolve()
	if err != nil {
		return Null(), err
	}

	var out schema.KeyMapping
	switch v.Kind() {
	case KindInstance:
		inst := v.Instance()
		if err := checkInstance(inst, model); err != nil {
			return Null(), fmt.Errorf("relation %s: %w", c.name, err)
		}
		for _, attr := range kd.Attributes {
			raw, ok := inst.KeyValue(attr.Name)
			if !ok {
				return Null(), fmt.Errorf("relation %s: %w", c.name, &schema.TypeMismatchError{
					Attribute: attr.Name,
					Expected:  attr.Type.String(),
					Got:       "instance without attribute",
				})
			}
			n, err := schema.Normalize(attr.Name, attr.Type, raw)
			if err != nil {
				return Null(), fmt.Errorf("relation %s: %w", c.name, err)
			}
			out.Set(attr.Name, n)
		}

	case KindKey:
		km := v.Key()
		if err := c.checkNames(kd, km); err != nil {
			return Null(), err
		}
		for _, attr := range kd.Attributes {
			raw, _ := km.Get(attr.Name)
			n, err := schema.Normalize(attr.Name, attr.Type, raw)
			if err != nil {
				return Null(), fmt.Errorf("relation %s: %w", c.name, err)
			}
			out.Set(attr.Name, n)
		}

	default:
		return Null(), fmt.Errorf("relation %s: %w", c.name,
			shapeMismatch(fmt.Sprintf("%s instance or key mapping", model.Name), v))
	}

	return FromKey(out), nil
}

// ToStorage validates v and returns a schema.KeyMapping of text encodings in
// declared order. Null is stored as an empty mapping.
func (c *CompositeCodec) ToStorage(v Value) (interface{}, error) {
	valid, err := c.Validate(v)
	if err != nil {
		return nil, err
	}
	if valid.IsNull() {
		return schema.KeyMapping{}, nil
	}

	_, kd, err := c.resolve()
	if err != nil {
		return nil, err
	}

	km := valid.Key()
	var stored schema.KeyMapping
	for _, attr := range kd.Attributes {
		raw, _ := km.Get(attr.Name)
		text, err := schema.EncodeText(attr.Name, attr.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("relation %s: %w", c.name, err)
		}
		stored.Set(attr.Name, text)
	}
	return stored, nil
}

// ToRuntime decodes a stored mapping back to native key values in declared
// order. The stored form may be a schema.KeyMapping, a map[string]string,
// a map[string]interface{} or its JSON text. Nil or empty input is null.
func (c *CompositeCodec) ToRuntime(stored interface{}) (Value, error) {
	km, err := c.storedMapping(stored)
	if err != nil {
		return Null(), err
	}
	if km.Len() == 0 {
		return Null(), nil
	}

	_, kd, err := c.resolve()
	if err != nil {
		return Null(), err
	}
	if err := c.checkNames(kd, km); err != nil {
		return Null(), err
	}

	var out schema.KeyMapping
	for _, attr := range kd.Attributes {
		raw, _ := km.Get(attr.Name)
		n, err := decodeComponent(attr, raw)
		if err != nil {
			return Null(), fmt.Errorf("relation %s: %w", c.name, err)
		}
		out.Set(attr.Name, n)
	}
	return FromKey(out), nil
}

// Key is ToRuntime returning the bare key mapping
func (c *CompositeCodec) Key(stored interface{}) (schema.KeyMapping, error) {
	v, err := c.ToRuntime(stored)
	if err != nil {
		return schema.KeyMapping{}, err
	}
	return v.Key(), nil
}

// checkNames enforces that km names exactly the key attributes
func (c *CompositeCodec) checkNames(kd schema.KeyDescriptor, km schema.KeyMapping) error {
	if missing := kd.Missing(km); len(missing) > 0 {
		return fmt.Errorf("relation %s: %w", c.name,
			&schema.IncompleteKeyError{Model: kd.Model, Missing: missing})
	}
	if extra := kd.Extra(km); len(extra) > 0 {
		return fmt.Errorf("relation %s: %w", c.name, &schema.TypeMismatchError{
			Attribute: extra[0],
			Expected:  "key attribute of " + kd.Model,
			Got:       "unknown attribute",
		})
	}
	return nil
}

func (c *CompositeCodec) storedMapping(stored interface{}) (schema.KeyMapping, error) {
	switch s := stored.(type) {
	case nil:
		return schema.KeyMapping{}, nil
	case schema.KeyMapping:
		return s, nil
	case *schema.KeyMapping:
		if s == nil {
			return schema.KeyMapping{}, nil
		}
		return *s, nil
	case map[string]string:
		m := make(map[string]interface{}, len(s))
		for k, v := range s {
			m[k] = v
		}
		return schema.KeyMappingFrom(m), nil
	case map[string]interface{}:
		return schema.KeyMappingFrom(s), nil
	case []byte:
		return c.unmarshal(s)
	case string:
		return c.unmarshal([]byte(s))
	default:
		return schema.KeyMapping{}, fmt.Errorf("relation %s: %w", c.name,
			&schema.TypeMismatchError{Expected: "key mapping", Got: fmt.Sprintf("%T", stored)})
	}
}

func (c *CompositeCodec) unmarshal(data []byte) (schema.KeyMapping, error) {
	var km schema.KeyMapping
	if len(data) == 0 {
		return km, nil
	}
	if err := json.Unmarshal(data, &km); err != nil {
		return schema.KeyMapping{}, fmt.Errorf("relation %s: %w: %v", c.name,
			&schema.TypeMismatchError{Expected: "key mapping", Got: "malformed JSON"}, err)
	}
	return km, nil
}

// decodeComponent turns one stored key component back into its native value.
// Text goes through the type's text decoder; anything else must already be
// native.
func decodeComponent(attr schema.KeyAttribute, raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case string:
		return schema.DecodeText(attr.Name, attr.Type, v)
	case []byte:
		return schema.DecodeText(attr.Name, attr.Type, string(v))
	case json.Number:
		return schema.DecodeText(attr.Name, attr.Type, v.String())
	}
	return schema.Normalize(attr.Name, attr.Type, raw)
}
