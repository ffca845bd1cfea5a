package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrStorage         = errors.New("storage failure")
	ErrClassification  = errors.New("emotion classification failed")
	ErrUnavailable     = errors.New("dependency unavailable")
	ErrNotConfigured   = errors.New("not configured")
)

// InputError names the request field that failed validation.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}
