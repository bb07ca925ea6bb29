package core

import "github.com/pkg/errors"

// FieldError ties a validation failure to the input field that caused it,
// keyed by the field's JSON name.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is an input rejection that the API layer renders as a
// 400 with a per-field error map.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown marks an error as non-recoverable; the server loop drains and
// exits when one surfaces.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
