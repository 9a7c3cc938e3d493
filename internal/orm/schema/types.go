// Package schema provides model descriptors, semantic key types and the
// per-engine model registries that relation fields resolve their targets
// against.
package schema

import (
	"fmt"
	"strings"

	strutil "github.com/conduit-lang/relations/internal/util/strings"
)

// PrimitiveType represents the semantic type of a model attribute
type PrimitiveType int

const (
	// Text types
	TypeString PrimitiveType = iota
	TypeText
	TypeASCII

	// Numeric types
	TypeInt
	TypeBigInt
	TypeFloat

	// Boolean
	TypeBool

	// Time types
	TypeTimestamp
	TypeDate

	// Unique identifiers
	TypeUUID
)

// String returns the string representation of the primitive type
func (p PrimitiveType) String() string {
	switch p {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeASCII:
		return "ascii"
	case TypeInt:
		return "int"
	case TypeBigInt:
		return "bigint"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	case TypeDate:
		return "date"
	case TypeUUID:
		return "uuid"
	default:
		return "unknown"
	}
}

// ParsePrimitiveType converts a string to a PrimitiveType
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "ascii":
		return TypeASCII, nil
	case "int":
		return TypeInt, nil
	case "bigint":
		return TypeBigInt, nil
	case "float":
		return TypeFloat, nil
	case "bool":
		return TypeBool, nil
	case "timestamp", "datetime":
		return TypeTimestamp, nil
	case "date":
		return TypeDate, nil
	case "uuid":
		return TypeUUID, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownType, s)
	}
}

// IsText returns true if the type is a text type
func (p PrimitiveType) IsText() bool {
	return p == TypeString || p == TypeText || p == TypeASCII
}

// IsInteger returns true if the type is an integer type
func (p PrimitiveType) IsInteger() bool {
	return p == TypeInt || p == TypeBigInt
}

func (p PrimitiveType) valid() bool {
	return p >= TypeString && p <= TypeUUID
}

// KeyRole tells whether a field takes part in the model's primary key
type KeyRole int

const (
	// KeyNone marks a regular, non-key attribute
	KeyNone KeyRole = iota
	// KeyPartition marks a partition key component
	KeyPartition
	// KeyClustering marks a remaining primary key component
	KeyClustering
)

// String returns the string representation of the key role
func (k KeyRole) String() string {
	switch k {
	case KeyNone:
		return "none"
	case KeyPartition:
		return "partition"
	case KeyClustering:
		return "clustering"
	default:
		return "unknown"
	}
}

// ParseKeyRole converts a string to a KeyRole. The empty string is KeyNone.
func ParseKeyRole(s string) (KeyRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return KeyNone, nil
	case "partition":
		return KeyPartition, nil
	case "clustering", "primary":
		return KeyClustering, nil
	default:
		return 0, fmt.Errorf("unknown key role: %s", s)
	}
}

// Field represents an attribute of a model
type Field struct {
	Name string
	Type PrimitiveType
	Key  KeyRole
}

// IsKey returns true if the field is part of the primary key
func (f *Field) IsKey() bool {
	return f.Key != KeyNone
}

// Model describes a target model: its name, the storage engine it lives in
// and its attributes in declaration order.
type Model struct {
	Name   string
	Engine string

	// Fields keeps declaration order; index gives name lookup.
	Fields []*Field
	index  map[string]int

	TableName string
}

// NewModel creates a new, empty model descriptor
func NewModel(name, engine string) *Model {
	return &Model{
		Name:      name,
		Engine:    engine,
		Fields:    make([]*Field, 0),
		index:     make(map[string]int),
		TableName: strutil.ToSnakeCase(name),
	}
}

// AddField appends an attribute. It returns the model for chaining.
func (m *Model) AddField(name string, typ PrimitiveType, key KeyRole) *Model {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	m.index[name] = len(m.Fields)
	m.Fields = append(m.Fields, &Field{Name: name, Type: typ, Key: key})
	return m
}

// Partition appends a partition key attribute
func (m *Model) Partition(name string, typ PrimitiveType) *Model {
	return m.AddField(name, typ, KeyPartition)
}

// Clustering appends a non-partition primary key attribute
func (m *Model) Clustering(name string, typ PrimitiveType) *Model {
	return m.AddField(name, typ, KeyClustering)
}

// Column appends a regular attribute
func (m *Model) Column(name string, typ PrimitiveType) *Model {
	return m.AddField(name, typ, KeyNone)
}

// Field returns the attribute with the given name
func (m *Model) Field(name string) (*Field, bool) {
	if m.index == nil {
		for _, f := range m.Fields {
			if f.Name == name {
				return f, true
			}
		}
		return nil, false
	}
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.Fields[i], true
}

// HasField returns true if the model has an attribute with the given name
func (m *Model) HasField(name string) bool {
	_, ok := m.Field(name)
	return ok
}

// FieldNames returns attribute names in declaration order
func (m *Model) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// Equal reports whether two descriptors are structurally identical
func (m *Model) Equal(other *Model) bool {
	if m == other {
		return true
	}
	if m == nil || other == nil {
		return false
	}
	if m.Name != other.Name || m.Engine != other.Engine || m.TableName != other.TableName {
		return false
	}
	if len(m.Fields) != len(other.Fields) {
		return false
	}
	for i, f := range m.Fields {
		o := other.Fields[i]
		if f.Name != o.Name || f.Type != o.Type || f.Key != o.Key {
			return false
		}
	}
	return true
}

// validate performs the structural checks run at registration
func (m *Model) validate() error {
	if m.Name == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if f.Name == "" {
			return fmt.Errorf("model %s: field name cannot be empty", m.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("model %s: duplicate field %s", m.Name, f.Name)
		}
		seen[f.Name] = true
		if !f.Type.valid() {
			return fmt.Errorf("model %s: field %s: %w", m.Name, f.Name, ErrUnknownType)
		}
	}
	return nil
}
