// Package store defines the key-based lookup the application uses to
// materialize the record a relation points at.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/conduit-lang/relations/internal/orm/record"
	"github.com/conduit-lang/relations/internal/orm/relations"
	"github.com/conduit-lang/relations/internal/orm/schema"
)

var (
	// ErrNotFound is returned when no record matches a key
	ErrNotFound = errors.New("record not found")

	// ErrUnknownEngine is returned when no store serves an engine
	ErrUnknownEngine = errors.New("no store for engine")

	// ErrUnknownModel is returned when a store has no definition for a model
	ErrUnknownModel = errors.New("model not known to store")
)

// Store persists and fetches records of one storage engine
type Store interface {
	// Engine returns the engine name the store serves
	Engine() string

	// Get fetches the record of model identified by key
	Get(ctx context.Context, model *schema.Model, key schema.KeyMapping) (*record.Record, error)

	// Put inserts or replaces a record
	Put(ctx context.Context, rec *record.Record) error

	// Delete removes the record of model identified by key
	Delete(ctx context.Context, model *schema.Model, key schema.KeyMapping) error
}

// Set dispatches to stores by engine name
type Set map[string]Store

// NewSet indexes stores by their engine
func NewSet(stores ...Store) Set {
	s := make(Set, len(stores))
	for _, st := range stores {
		s[st.Engine()] = st
	}
	return s
}

// For returns the store serving engine
func (s Set) For(engine string) (Store, error) {
	st, ok := s[engine]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, engine)
	}
	return st, nil
}

// Follow fetches the record a relation value points at. The value may be a
// runtime value returned by ToRuntime or anything the column validates.
func Follow(ctx context.Context, stores Set, col relations.Column, v relations.Value) (*record.Record, error) {
	model, _, err := col.Target().Resolve()
	if err != nil {
		return nil, err
	}

	key, err := KeyOf(col, v)
	if err != nil {
		return nil, err
	}

	st, err := stores.For(model.Engine)
	if err != nil {
		return nil, err
	}
	return st.Get(ctx, model, key)
}

// KeyOf turns a relation value into the key mapping of its target
func KeyOf(col relations.Column, v relations.Value) (schema.KeyMapping, error) {
	valid, err := col.Validate(v)
	if err != nil {
		return schema.KeyMapping{}, err
	}
	if valid.IsNull() {
		return schema.KeyMapping{}, fmt.Errorf("relation %s: %w", col.Name(), relations.ErrNullValue)
	}

	switch valid.Kind() {
	case relations.KindKey:
		return valid.Key(), nil
	case relations.KindScalar:
		kd, err := col.KeyDescriptor()
		if err != nil {
			return schema.KeyMapping{}, err
		}
		return schema.NewKeyMapping(schema.KeyValue{Name: kd.Attributes[0].Name, Value: valid.Scalar()}), nil
	default:
		return schema.KeyMapping{}, fmt.Errorf("relation %s: unexpected %s value", col.Name(), valid.Kind())
	}
}

// CheckKey verifies that key names exactly the key attributes of model and
// returns it normalized, in key order.
func CheckKey(model *schema.Model, key schema.KeyMapping) (schema.KeyDescriptor, schema.KeyMapping, error) {
	kd, err := schema.BuildKeyDescriptor(model)
	if err != nil {
		return kd, schema.KeyMapping{}, err
	}
	if missing := kd.Missing(key); len(missing) > 0 {
		return kd, schema.KeyMapping{}, &schema.IncompleteKeyError{Model: model.Name, Missing: missing}
	}
	if extra := kd.Extra(key); len(extra) > 0 {
		return kd, schema.KeyMapping{}, &schema.TypeMismatchError{
			Attribute: extra[0],
			Expected:  "key attribute of " + model.Name,
			Got:       "unknown attribute",
		}
	}

	var out schema.KeyMapping
	for _, attr := range kd.Attributes {
		raw, _ := key.Get(attr.Name)
		n, err := schema.Normalize(attr.Name, attr.Type, raw)
		if err != nil {
			return kd, schema.KeyMapping{}, err
		}
		out.Set(attr.Name, n)
	}
	return kd, out, nil
}

// Definitions indexes record definitions by model name, so stores can
// rebuild records with their relation columns.
type Definitions map[string]*record.Definition

// For returns the definition of model, or a bare one when none is known
func (d Definitions) For(model *schema.Model) *record.Definition {
	if def, ok := d[model.Name]; ok && def.Model().Engine == model.Engine {
		return def
	}
	def, _ := record.NewDefinition(model)
	return def
}

// EncodeKey renders a normalized key as text components in key order
func EncodeKey(kd schema.KeyDescriptor, key schema.KeyMapping) ([]string, error) {
	parts := make([]string, 0, kd.Len())
	for _, attr := range kd.Attributes {
		raw, _ := key.Get(attr.Name)
		text, err := schema.EncodeText(attr.Name, attr.Type, raw)
		if err != nil {
			return nil, err
		}
		parts = append(parts, text)
	}
	return parts, nil
}
