package routedex

import (
	"errors"

	"github.com/kailas-cloud/routedex/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound                  = domain.ErrNotFound
	ErrUnknownEntity             = domain.ErrUnknownEntity
	ErrInvalidCriteria           = domain.ErrInvalidCriteria
	ErrInvalidQuery              = domain.ErrInvalidQuery
	ErrValidation                = domain.ErrValidation
	ErrConflict                  = domain.ErrConflict
	ErrInvalidReference          = domain.ErrInvalidReference
	ErrKeywordSearchNotSupported = domain.ErrKeywordSearchNotSupported

	// ErrIndexTimeout is returned by WaitIndexed when the index did not reach
	// the expected state in time.
	ErrIndexTimeout = errors.New("index state timeout")
)

// VersionConflictError carries the current version of a row a conditional
// write lost against. It matches ErrConflict.
type VersionConflictError = domain.VersionConflictError
