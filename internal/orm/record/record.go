// Package record is the host side of relation columns: it declares which
// relation columns a model carries and calls their hooks when values are
// assigned, persisted and loaded.
package record

import (
	"fmt"
	"sort"

	"github.com/conduit-lang/relations/internal/orm/relations"
	"github.com/conduit-lang/relations/internal/orm/schema"
)

// Definition binds an owning model to its relation columns. It is built once
// per model and shared by all of its records.
type Definition struct {
	model   *schema.Model
	columns []relations.Column
	byName  map[string]relations.Column
}

// NewDefinition declares the relation columns of model. Same-store variants
// must target the owning engine and cross-store columns another engine.
func NewDefinition(model *schema.Model, columns ...relations.Column) (*Definition, error) {
	if model == nil {
		return nil, fmt.Errorf("definition requires a model")
	}

	d := &Definition{
		model:   model,
		columns: make([]relations.Column, 0, len(columns)),
		byName:  make(map[string]relations.Column, len(columns)),
	}
	for _, col := range columns {
		if err := d.add(col); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Definition) add(col relations.Column) error {
	name := col.Name()
	if _, exists := d.byName[name]; exists || d.model.HasField(name) {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateColumn, d.model.Name, name)
	}

	targetEngine := col.Target().Engine()
	switch col.Variant() {
	case relations.VariantCrossStore:
		if targetEngine == d.model.Engine {
			return fmt.Errorf("%w: %s.%s is cross-store but targets engine %s",
				ErrWrongEngine, d.model.Name, name, targetEngine)
		}
	default:
		if targetEngine != d.model.Engine {
			return fmt.Errorf("%w: %s.%s targets engine %s, owner is %s",
				ErrWrongEngine, d.model.Name, name, targetEngine, d.model.Engine)
		}
	}

	d.columns = append(d.columns, col)
	d.byName[name] = col
	return nil
}

// Model returns the owning model
func (d *Definition) Model() *schema.Model { return d.model }

// Name returns the owning model name
func (d *Definition) Name() string { return d.model.Name }

// Column returns the relation column with the given name
func (d *Definition) Column(name string) (relations.Column, bool) {
	col, ok := d.byName[name]
	return col, ok
}

// Columns returns relation columns in declaration order
func (d *Definition) Columns() []relations.Column {
	out := make([]relations.Column, len(d.columns))
	copy(out, d.columns)
	return out
}

// StorageColumns returns attribute names followed by relation column names,
// the column list of a persisted row.
func (d *Definition) StorageColumns() []string {
	names := d.model.FieldNames()
	for _, col := range d.columns {
		names = append(names, col.Name())
	}
	return names
}

// Record is a live instance of a model. It implements schema.Instance so it
// can be assigned to relation columns of other models.
type Record struct {
	def       *Definition
	values    map[string]interface{}
	relations map[string]relations.Value
}

// New creates an empty record
func New(def *Definition) *Record {
	return &Record{
		def:       def,
		values:    make(map[string]interface{}),
		relations: make(map[string]relations.Value),
	}
}

// ForModel creates an empty record of a model without relation columns
func ForModel(model *schema.Model) *Record {
	def, _ := NewDefinition(model)
	return New(def)
}

// Definition returns the record's definition
func (r *Record) Definition() *Definition { return r.def }

// ModelName implements schema.Instance
func (r *Record) ModelName() string { return r.def.model.Name }

// Engine implements schema.Instance
func (r *Record) Engine() string { return r.def.model.Engine }

// KeyValue implements schema.Instance
func (r *Record) KeyValue(name string) (interface{}, bool) {
	f, ok := r.def.model.Field(name)
	if !ok || !f.IsKey() {
		return nil, false
	}
	v, ok := r.values[name]
	return v, ok
}

// Set assigns an attribute or a relation column. Relation values go
// through the column's Validate hook; attributes are type checked against
// their semantic type.
func (r *Record) Set(name string, value interface{}) error {
	if col, ok := r.def.Column(name); ok {
		v, err := col.Validate(relations.Of(value))
		if err != nil {
			return r.fieldError(name, PhaseValidate, err)
		}
		r.relations[name] = v
		return nil
	}

	f, ok := r.def.model.Field(name)
	if !ok {
		return r.fieldError(name, PhaseValidate, ErrUnknownField)
	}
	if value == nil {
		delete(r.values, name)
		return nil
	}
	n, err := schema.Normalize(name, f.Type, value)
	if err != nil {
		return r.fieldError(name, PhaseValidate, err)
	}
	r.values[name] = n
	return nil
}

// MustSet is Set that panics on error; meant for fixtures
func (r *Record) MustSet(name string, value interface{}) *Record {
	if err := r.Set(name, value); err != nil {
		panic(err)
	}
	return r
}

// Get returns an attribute value
func (r *Record) Get(name string) (interface{}, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Relation returns the value of a relation column; null when unset
func (r *Record) Relation(name string) relations.Value {
	return r.relations[name]
}

// Values returns a copy of the attribute values
func (r *Record) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Key returns the record's own primary key mapping in key order
func (r *Record) Key() (schema.KeyMapping, error) {
	kd, err := schema.BuildKeyDescriptor(r.def.model)
	if err != nil {
		return schema.KeyMapping{}, err
	}

	var km schema.KeyMapping
	var missing []string
	for _, attr := range kd.Attributes {
		v, ok := r.values[attr.Name]
		if !ok {
			missing = append(missing, attr.Name)
			continue
		}
		km.Set(attr.Name, v)
	}
	if len(missing) > 0 {
		return schema.KeyMapping{}, &schema.IncompleteKeyError{Model: r.def.model.Name, Missing: missing}
	}
	return km, nil
}

// Encode converts the record into a storage row: attributes through their
// scalar storage encoding, relation columns through ToStorage.
func (r *Record) Encode() (map[string]interface{}, error) {
	row := make(map[string]interface{}, len(r.values)+len(r.def.columns))

	for _, f := range r.def.model.Fields {
		v, ok := r.values[f.Name]
		if !ok {
			row[f.Name] = nil
			continue
		}
		stored, err := schema.EncodeScalar(f.Name, f.Type, v)
		if err != nil {
			return nil, r.fieldError(f.Name, PhaseEncode, err)
		}
		row[f.Name] = stored
	}

	for _, col := range r.def.columns {
		stored, err := col.ToStorage(r.relations[col.Name()])
		if err != nil {
			return nil, r.fieldError(col.Name(), PhaseEncode, err)
		}
		row[col.Name()] = stored
	}

	return row, nil
}

// Decode rebuilds a record from a storage row. Columns missing from the row
// are left unset.
func Decode(def *Definition, row map[string]interface{}) (*Record, error) {
	r := New(def)

	for _, f := range def.model.Fields {
		stored, ok := row[f.Name]
		if !ok || stored == nil {
			continue
		}
		v, err := schema.DecodeScalar(f.Name, f.Type, stored)
		if err != nil {
			return nil, r.fieldError(f.Name, PhaseDecode, err)
		}
		r.values[f.Name] = v
	}

	for _, col := range def.columns {
		stored, ok := row[col.Name()]
		if !ok {
			continue
		}
		v, err := col.ToRuntime(stored)
		if err != nil {
			return nil, r.fieldError(col.Name(), PhaseDecode, err)
		}
		r.relations[col.Name()] = v
	}

	return r, nil
}

// Equal compares attribute values and relation values
func (r *Record) Equal(other *Record) bool {
	if other == nil || r.ModelName() != other.ModelName() || r.Engine() != other.Engine() {
		return false
	}
	if !schema.KeyMappingFrom(r.values).Equal(schema.KeyMappingFrom(other.values)) {
		return false
	}
	// unset relations read as null on both sides
	for name, v := range r.relations {
		if !v.Equal(other.relations[name]) {
			return false
		}
	}
	for name, v := range other.relations {
		if !v.Equal(r.relations[name]) {
			return false
		}
	}
	return true
}

// String renders the record for CLI output
func (r *Record) String() string {
	names := make([]string, 0, len(r.values)+len(r.relations))
	for name := range r.values {
		names = append(names, name)
	}
	for name := range r.relations {
		names = append(names, name)
	}
	sort.Strings(names)

	out := r.def.model.Name + "{"
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		if v, ok := r.values[name]; ok {
			out += fmt.Sprintf("%s: %v", name, v)
		} else {
			out += fmt.Sprintf("%s: %s", name, r.relations[name])
		}
	}
	return out + "}"
}

func (r *Record) fieldError(field string, phase Phase, err error) error {
	return &FieldError{Model: r.def.model.Name, Field: field, Phase: phase, Err: err}
}
