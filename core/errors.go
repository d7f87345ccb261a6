package core

import "github.com/pkg/errors"

// FieldError ties a validation failure to the input field that caused it.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned when submitted data fails validation. Fields
// carries the per-field breakdown handlers render as a 400 response body.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown signals an unrecoverable integrity problem. Handlers that see
// one let the process die instead of serving on a broken state.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown checks the cause chain for a shutdown error.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
