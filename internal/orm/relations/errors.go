package relations

import "errors"

var (
	// ErrNotScalarKey is returned when a scalar relation targets a model with a composite key
	ErrNotScalarKey = errors.New("target key is not a single attribute")

	// ErrIndexedComposite is returned when a composite relation is declared with a secondary index
	ErrIndexedComposite = errors.New("secondary indexes on composite relations are not allowed")

	// ErrNoTarget is returned when a relation is declared without a target model
	ErrNoTarget = errors.New("no target model provided")

	// ErrNoColumnName is returned when a relation is declared without a column name
	ErrNoColumnName = errors.New("relation column name cannot be empty")

	// ErrNullValue is returned when a required relation is assigned no value
	ErrNullValue = errors.New("required relation cannot be null")
)
