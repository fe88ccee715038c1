package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrUnknownEntity signals an entity name that has no schema.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrInvalidCriteria signals an unknown filter field/operator or a malformed operand.
	ErrInvalidCriteria = errors.New("invalid criteria")
	// ErrInvalidQuery signals a malformed search query expression.
	ErrInvalidQuery = errors.New("invalid search query")
	// ErrValidation signals a payload that does not match the entity schema.
	ErrValidation = errors.New("validation failed")

	// ErrConflict signals a stale write or a unique constraint violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidReference signals a relation id that points to a missing row.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrKeywordSearchNotSupported signals that the backend lacks keyword search.
	ErrKeywordSearchNotSupported = errors.New("keyword search not supported by backend")
)

// VersionConflictError wraps ErrConflict with the current row version.
type VersionConflictError struct {
	CurrentVersion int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s: current version is %d", ErrConflict.Error(), e.CurrentVersion)
}

func (e *VersionConflictError) Unwrap() error { return ErrConflict }

// NewVersionConflict creates a version conflict error.
func NewVersionConflict(currentVersion int64) error {
	return &VersionConflictError{CurrentVersion: currentVersion}
}
