package domain

import "errors"

// Error kinds surfaced to callers. Wrap with fmt.Errorf("...: %w", ErrX)
// and match with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrAuthorization    = errors.New("not authorized")
	ErrConflict         = errors.New("conflict")
	ErrInvalidState     = errors.New("invalid state")
	ErrCapacityExceeded = errors.New("no seats left")
)
