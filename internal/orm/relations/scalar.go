package relations

import (
	"fmt"

	"github.com/conduit-lang/relations/internal/orm/schema"
)

// ScalarCodec points at a record whose primary key is a single attribute.
// The stored form is the bare key value so the column stays a plain,
// indexable scalar.
type ScalarCodec struct {
	base
	variant Variant
}

// NewScalar declares a scalar relation column
func NewScalar(name string, target *Target, opts Options) (*ScalarCodec, error) {
	b, err := newBase(name, target, opts)
	if err != nil {
		return nil, err
	}
	return &ScalarCodec{base: b, variant: VariantScalar}, nil
}

// Variant returns VariantScalar, or VariantCrossStore when embedded
func (c *ScalarCodec) Variant() Variant { return c.variant }

// attribute resolves the target and returns its sole key attribute
func (c *ScalarCodec) attribute() (*schema.Model, schema.KeyAttribute, error) {
	model, kd, err := c.resolve()
	if err != nil {
		return nil, schema.KeyAttribute{}, err
	}
	if kd.Len() != 1 {
		return nil, schema.KeyAttribute{}, fmt.Errorf("relation %s: %w: %s", c.name, ErrNotScalarKey, kd)
	}
	return model, kd.Attributes[0], nil
}

// Validate accepts a scalar of the key attribute's type or a live instance
// of the target model. It returns the normalized scalar.
func (c *ScalarCodec) Validate(v Value) (Value, error) {
	if v.IsNull() {
		return c.checkNull()
	}

	model, attr, err := c.attribute()
	if err != nil {
		return Null(), err
	}

	var raw interface{}
	switch v.Kind() {
	case KindScalar:
		raw = v.Scalar()
	case KindInstance:
		inst := v.Instance()
		if err := checkInstance(inst, model); err != nil {
			return Null(), fmt.Errorf("relation %s: %w", c.name, err)
		}
		val, ok := inst.KeyValue(attr.Name)
		if !ok {
			return Null(), fmt.Errorf("relation %s: %w", c.name, &schema.TypeMismatchError{
				Attribute: attr.Name,
				Expected:  attr.Type.String(),
				Got:       "instance without attribute",
			})
		}
		raw = val
	default:
		return Null(), fmt.Errorf("relation %s: %w", c.name,
			shapeMismatch(fmt.Sprintf("%s scalar or %s instance", attr.Type, model.Name), v))
	}

	n, err := schema.Normalize(attr.Name, attr.Type, raw)
	if err != nil {
		return Null(), fmt.Errorf("relation %s: %w", c.name, err)
	}
	return FromScalar(n), nil
}

// ToStorage validates v and returns the key encoded for a scalar column.
// Null is stored as nil.
func (c *ScalarCodec) ToStorage(v Value) (interface{}, error) {
	valid, err := c.Validate(v)
	if err != nil {
		return nil, err
	}
	if valid.IsNull() {
		return nil, nil
	}

	_, attr, err := c.attribute()
	if err != nil {
		return nil, err
	}
	return schema.EncodeScalar(attr.Name, attr.Type, valid.Scalar())
}

// ToRuntime decodes a stored scalar back to its native key value
func (c *ScalarCodec) ToRuntime(stored interface{}) (Value, error) {
	if stored == nil {
		return Null(), nil
	}

	_, attr, err := c.attribute()
	if err != nil {
		return Null(), err
	}

	n, err := schema.DecodeScalar(attr.Name, attr.Type, stored)
	if err != nil {
		return Null(), fmt.Errorf("relation %s: %w", c.name, err)
	}
	return FromScalar(n), nil
}

// Scalar is ToRuntime returning the bare key value
func (c *ScalarCodec) Scalar(stored interface{}) (interface{}, error) {
	v, err := c.ToRuntime(stored)
	if err != nil {
		return nil, err
	}
	return v.Scalar(), nil
}

// KeyFor returns the one-entry key mapping identifying the target of v,
// ready for the target store's lookup.
func (c *ScalarCodec) KeyFor(v Value) (schema.KeyMapping, error) {
	valid, err := c.Validate(v)
	if err != nil {
		return schema.KeyMapping{}, err
	}
	if valid.IsNull() {
		return schema.KeyMapping{}, fmt.Errorf("relation %s: %w", c.name, ErrNullValue)
	}

	_, attr, err := c.attribute()
	if err != nil {
		return schema.KeyMapping{}, err
	}
	return schema.NewKeyMapping(schema.KeyValue{Name: attr.Name, Value: valid.Scalar()}), nil
}

// CrossStoreCodec points at a record with a single-attribute key that lives
// in another storage engine. Its target resolves against that engine's
// registry and only instances from that engine are accepted.
type CrossStoreCodec struct {
	ScalarCodec
}

// NewCrossStore declares a cross-store relation column
func NewCrossStore(name string, target *Target, opts Options) (*CrossStoreCodec, error) {
	b, err := newBase(name, target, opts)
	if err != nil {
		return nil, err
	}
	return &CrossStoreCodec{ScalarCodec{base: b, variant: VariantCrossStore}}, nil
}

// Engine returns the foreign engine the target lives in
func (c *CrossStoreCodec) Engine() string {
	return c.target.Engine()
}
