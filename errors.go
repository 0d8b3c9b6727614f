package mapping

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalDefinition matches *IllegalDefinitionError.
	ErrIllegalDefinition = errors.New("mapping: illegal mapping definition")
	// ErrDuplicateDefinition matches *DuplicateDefinitionError.
	ErrDuplicateDefinition = errors.New("mapping: duplicate mapping definition")
	// ErrDefinitionNotFound matches *DefinitionNotFoundError.
	ErrDefinitionNotFound = errors.New("mapping: mapping definition not found")
	// ErrMapping matches *MappingError.
	ErrMapping = errors.New("mapping: mapping failed")

	// ErrNilSource is returned when a non-nil source is required.
	ErrNilSource = errors.New("mapping: source must not be nil")
	// ErrNilTarget is returned when a non-nil target (instance, type or collection) is required.
	ErrNilTarget = errors.New("mapping: target must not be nil")
	// ErrInvalidTarget is returned when a supplied target cannot be written to.
	ErrInvalidTarget = errors.New("mapping: target must be a non-nil pointer")
)

// IllegalDefinitionError reports a function that does not match any accepted Shape.
type IllegalDefinitionError struct {
	Origin string
	Reason string
}

func (e *IllegalDefinitionError) Error() string {
	return fmt.Sprintf("mapping: %s doesn't denote a valid mapping: %s", e.Origin, e.Reason)
}

func (e *IllegalDefinitionError) Is(target error) bool { return target == ErrIllegalDefinition }

// DuplicateDefinitionError reports a second registration under an occupied key.
type DuplicateDefinitionError struct {
	Key       Key
	Previous  string
	Duplicate string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("mapping: found duplicate mapping definitions for '%s': '%s' and '%s'", e.Key, e.Previous, e.Duplicate)
}

func (e *DuplicateDefinitionError) Is(target error) bool { return target == ErrDuplicateDefinition }

// DefinitionNotFoundError reports a key with no direct or inherited mapping.
type DefinitionNotFoundError struct {
	Key Key
}

func (e *DefinitionNotFoundError) Error() string {
	return fmt.Sprintf("mapping: stumbled upon undefined mapping '%s'", e.Key)
}

func (e *DefinitionNotFoundError) Is(target error) bool { return target == ErrDefinitionNotFound }

// MappingError reports a failure while invoking a resolved mapping.
type MappingError struct {
	Key    Key
	Reason string
	Cause  error
}

func (e *MappingError) Error() string {
	msg := fmt.Sprintf("mapping: unable to perform '%s' mapping", e.Key)
	if e.Reason != "" {
		msg = fmt.Sprintf("mapping: '%s' %s", e.Key, e.Reason)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *MappingError) Unwrap() error { return e.Cause }

func (e *MappingError) Is(target error) bool { return target == ErrMapping }

func mappingFailed(k Key, cause error) *MappingError {
	return &MappingError{Key: k, Cause: cause}
}
