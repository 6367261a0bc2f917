package order

import (
	"fmt"
	"strings"
)

// ValidationError reports a missing or malformed order field. It is returned
// before any side effect takes place.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid order: %s", e.Reason)
	}
	return fmt.Sprintf("invalid order: %s: %s", e.Field, e.Reason)
}

// ValidationErrors groups every field problem found in a single order.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.As.
func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, ve := range e {
		errs[i] = ve
	}
	return errs
}

// Missing returns a ValidationError for an absent required field.
func Missing(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "required field is missing"}
}
