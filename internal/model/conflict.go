package model

import "errors"

// Conflict errors are surfaced by the store when a uniqueness constraint fires,
// whether caught by a pre-check or at commit time.
var (
	ErrSlugTaken        = errors.New("display slug already in use")
	ErrFingerprintTaken = errors.New("display fingerprint and output already registered")
	ErrSessionConsumed  = errors.New("registration session already consumed")
)

// IsConflict reports whether err belongs to the conflict category.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlugTaken) || errors.Is(err, ErrFingerprintTaken) || errors.Is(err, ErrSessionConsumed)
}

// ValidationError carries a message that is always safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}
