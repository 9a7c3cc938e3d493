package record

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownField is returned when a name is neither an attribute nor a relation
	ErrUnknownField = errors.New("unknown field")

	// ErrDuplicateColumn is returned when two columns of a definition share a name
	ErrDuplicateColumn = errors.New("duplicate column")

	// ErrWrongEngine is returned when a relation's target engine does not fit its variant
	ErrWrongEngine = errors.New("relation target engine does not fit its kind")
)

// Phase tells which hook a field failure came from
type Phase string

const (
	// PhaseValidate is assignment-time validation
	PhaseValidate Phase = "validation"
	// PhaseEncode is conversion to the storage form
	PhaseEncode Phase = "serialization"
	// PhaseDecode is conversion from the storage form
	PhaseDecode Phase = "deserialization"
)

// FieldError reports a failure on a single field. It wraps the cause, so
// errors.Is still reaches the schema error taxonomy.
type FieldError struct {
	Model string
	Field string
	Phase Phase
	Err   error
}

// Error implements the error interface
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %s failed: %v", e.Model, e.Field, e.Phase, e.Err)
}

// Unwrap returns the cause
func (e *FieldError) Unwrap() error {
	return e.Err
}

// IsFieldError returns true if err carries a FieldError
func IsFieldError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}
