package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnresolvedModel is returned when a model name has no registered descriptor
	ErrUnresolvedModel = errors.New("unresolved model")

	// ErrEmptyKey is returned when a model declares no primary key attribute
	ErrEmptyKey = errors.New("model declares no primary key")

	// ErrIncompleteKey is returned when a key mapping lacks a required attribute
	ErrIncompleteKey = errors.New("incomplete key")

	// ErrTypeMismatch is returned when a value does not match its declared type
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrConflictingModel is returned when a different descriptor is registered under a taken name
	ErrConflictingModel = errors.New("conflicting model registration")

	// ErrEngineMismatch is returned when a model is registered with another engine's registry
	ErrEngineMismatch = errors.New("model belongs to another engine")

	// ErrUnknownType is returned for an unrecognized semantic type
	ErrUnknownType = errors.New("unknown type")
)

// UnresolvedModelError reports a lookup of a model name that nothing registered
type UnresolvedModelError struct {
	Engine string
	Name   string
}

func (e *UnresolvedModelError) Error() string {
	if e.Engine == "" {
		return fmt.Sprintf("unresolved model: %s", e.Name)
	}
	return fmt.Sprintf("unresolved model: %s (engine %s)", e.Name, e.Engine)
}

// Unwrap allows errors.Is(err, ErrUnresolvedModel)
func (e *UnresolvedModelError) Unwrap() error { return ErrUnresolvedModel }

// EmptyKeyError reports a target model with no primary key attributes
type EmptyKeyError struct {
	Model string
}

func (e *EmptyKeyError) Error() string {
	return fmt.Sprintf("model %s declares no primary key", e.Model)
}

// Unwrap allows errors.Is(err, ErrEmptyKey)
func (e *EmptyKeyError) Unwrap() error { return ErrEmptyKey }

// IncompleteKeyError lists the key attributes absent from a value
type IncompleteKeyError struct {
	Model   string
	Missing []string
}

func (e *IncompleteKeyError) Error() string {
	return fmt.Sprintf("incomplete key for %s: missing %s", e.Model, strings.Join(e.Missing, ", "))
}

// Unwrap allows errors.Is(err, ErrIncompleteKey)
func (e *IncompleteKeyError) Unwrap() error { return ErrIncompleteKey }

// TypeMismatchError reports a value that does not fit where it was assigned.
// Attribute is empty when the whole value has the wrong shape.
type TypeMismatchError struct {
	Attribute string
	Expected  string
	Got       string
}

func (e *TypeMismatchError) Error() string {
	if e.Attribute == "" {
		return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
	}
	return fmt.Sprintf("type mismatch on %s: expected %s, got %s", e.Attribute, e.Expected, e.Got)
}

// Unwrap allows errors.Is(err, ErrTypeMismatch)
func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// mismatch builds a TypeMismatchError describing the Go type of got
func mismatch(attr string, expected PrimitiveType, got interface{}) *TypeMismatchError {
	return &TypeMismatchError{
		Attribute: attr,
		Expected:  expected.String(),
		Got:       fmt.Sprintf("%T", got),
	}
}

// IsUnresolved returns true if the error is an unresolved model error
func IsUnresolved(err error) bool {
	return errors.Is(err, ErrUnresolvedModel)
}

// IsIncompleteKey returns true if the error is an incomplete key error
func IsIncompleteKey(err error) bool {
	return errors.Is(err, ErrIncompleteKey)
}

// IsTypeMismatch returns true if the error is a type mismatch error
func IsTypeMismatch(err error) bool {
	return errors.Is(err, ErrTypeMismatch)
}
