package relations

import (
	"fmt"

	"github.com/conduit-lang/relations/internal/orm/schema"
)

// Variant identifies the codec behind a relation column
type Variant int

const (
	// VariantScalar stores a single-attribute key as a plain scalar
	VariantScalar Variant = iota
	// VariantComposite stores a multi-attribute key as an ordered text mapping
	VariantComposite
	// VariantCrossStore stores the scalar key of a record in another engine
	VariantCrossStore
)

// String returns the string representation of the variant
func (v Variant) String() string {
	switch v {
	case VariantScalar:
		return "scalar"
	case VariantComposite:
		return "composite"
	case VariantCrossStore:
		return "cross_store"
	default:
		return "unknown"
	}
}

// ParseVariant converts a string to a Variant
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "scalar", "relation":
		return VariantScalar, nil
	case "composite":
		return VariantComposite, nil
	case "cross_store", "cross-store", "external":
		return VariantCrossStore, nil
	default:
		return 0, fmt.Errorf("unknown relation kind: %s", s)
	}
}

// Column is the hook contract a host framework calls on a relation field.
// A Column is declared once per attribute and shared by every instance of
// the owning model.
type Column interface {
	Name() string
	Variant() Variant
	Target() *Target
	Options() Options

	// KeyDescriptor resolves the target on first use
	KeyDescriptor() (schema.KeyDescriptor, error)

	// Validate is called before a value is accepted into the field. It
	// returns the normalized value.
	Validate(v Value) (Value, error)

	// ToStorage is called before persistence. Scalar variants return a
	// single column value; the composite variant returns a schema.KeyMapping
	// of text values.
	ToStorage(v Value) (interface{}, error)

	// ToRuntime is called after a row is loaded and rebuilds the key.
	ToRuntime(stored interface{}) (Value, error)
}

// Options holds declaration-time settings of a relation column
type Options struct {
	// Required rejects null values on Validate
	Required bool
	// Indexed asks for a secondary index on the column
	Indexed bool
}

// base holds what every codec shares
type base struct {
	name   string
	target *Target
	opts   Options
}

func newBase(name string, target *Target, opts Options) (base, error) {
	if name == "" {
		return base{}, ErrNoColumnName
	}
	if target == nil || target.Name() == "" {
		return base{}, fmt.Errorf("relation %s: %w", name, ErrNoTarget)
	}
	return base{name: name, target: target, opts: opts}, nil
}

// Name returns the column name
func (b *base) Name() string { return b.name }

// Target returns the lazily bound target
func (b *base) Target() *Target { return b.target }

// Options returns the declaration options
func (b *base) Options() Options { return b.opts }

// KeyDescriptor resolves the target and returns its key descriptor
func (b *base) KeyDescriptor() (schema.KeyDescriptor, error) {
	kd, err := b.target.KeyDescriptor()
	if err != nil {
		return schema.KeyDescriptor{}, fmt.Errorf("relation %s: %w", b.name, err)
	}
	return kd, nil
}

func (b *base) resolve() (*schema.Model, schema.KeyDescriptor, error) {
	model, kd, err := b.target.Resolve()
	if err != nil {
		return nil, schema.KeyDescriptor{}, fmt.Errorf("relation %s: %w", b.name, err)
	}
	return model, kd, nil
}

func (b *base) checkNull() (Value, error) {
	if b.opts.Required {
		return Null(), fmt.Errorf("relation %s: %w", b.name, ErrNullValue)
	}
	return Null(), nil
}

// checkInstance makes sure a live instance belongs to the target model and
// engine.
func checkInstance(inst schema.Instance, model *schema.Model) error {
	if inst.ModelName() != model.Name {
		return &schema.TypeMismatchError{
			Expected: model.Name + " instance",
			Got:      inst.ModelName() + " instance",
		}
	}
	if inst.Engine() != model.Engine {
		return &schema.TypeMismatchError{
			Expected: fmt.Sprintf("%s instance from engine %s", model.Name, model.Engine),
			Got:      fmt.Sprintf("instance from engine %s", inst.Engine()),
		}
	}
	return nil
}

// shapeMismatch reports a value of the wrong variant for a codec
func shapeMismatch(expected string, got Value) error {
	return &schema.TypeMismatchError{Expected: expected, Got: got.Kind().String()}
}

var (
	_ Column = (*ScalarCodec)(nil)
	_ Column = (*CompositeCodec)(nil)
	_ Column = (*CrossStoreCodec)(nil)
)
