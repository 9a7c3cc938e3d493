package relations

import (
	"github.com/conduit-lang/relations/internal/orm/schema"
)

// FromInput builds a value of native key components from loosely typed
// input, such as command-line text or decoded JSON. key takes precedence
// over scalar; neither given is null. Scalar relations also accept the
// one-entry key mapping form.
func FromInput(col Column, key *schema.KeyMapping, scalar interface{}) (Value, error) {
	if key == nil && scalar == nil {
		return Null(), nil
	}

	kd, err := col.KeyDescriptor()
	if err != nil {
		return Null(), err
	}

	if key != nil {
		km, err := kd.Parse(*key)
		if err != nil {
			return Null(), err
		}
		if col.Variant() == VariantComposite {
			return FromKey(km), nil
		}
		return scalarFromKey(kd, km)
	}

	if kd.Len() != 1 {
		return FromScalar(scalar), nil
	}
	attr := kd.Attributes[0]
	v, err := schema.ParseValue(attr.Name, attr.Type, scalar)
	if err != nil {
		return Null(), err
	}
	return FromScalar(v), nil
}

func scalarFromKey(kd schema.KeyDescriptor, km schema.KeyMapping) (Value, error) {
	if missing := kd.Missing(km); len(missing) > 0 {
		return Null(), &schema.IncompleteKeyError{Model: kd.Model, Missing: missing}
	}
	if extra := kd.Extra(km); len(extra) > 0 || kd.Len() != 1 {
		return Null(), &schema.TypeMismatchError{Expected: kd.String(), Got: km.String()}
	}
	v, _ := km.Get(kd.Attributes[0].Name)
	return FromScalar(v), nil
}
