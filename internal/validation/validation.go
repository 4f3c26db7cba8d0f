// Package validation holds the error returned for missing or malformed
// operator arguments. It is raised before any request is sent.
package validation

import "fmt"

// Error reports a missing or malformed argument.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	if e.Reason == "" {
		return fmt.Sprintf("Missing required argument: %s", e.Field)
	}
	return fmt.Sprintf("Invalid argument %s: %s", e.Field, e.Reason)
}

// Missing reports an absent required argument.
func Missing(field string) error {
	return &Error{Field: field}
}

// Invalid reports an argument that failed to parse or validate.
func Invalid(field, format string, a ...interface{}) error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, a...)}
}
