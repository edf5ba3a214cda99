package debugger

import (
	"fmt"
)

// ValidationError reports an invalid configuration, path, location or project shape
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	message := fmt.Sprintf("invalid %v %q: %v", e.Field, e.Value, e.Reason)
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, value, reason string, err error) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Err: err}
}
