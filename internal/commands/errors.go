package commands

import (
	"errors"

	"github.com/invisible-tech/xdr-responder/internal/validation"
)

// ErrUnknownCommand is returned by Run for names not in the registry.
var ErrUnknownCommand = errors.New("unknown command")

// ValidationError reports a missing or malformed argument. It is raised
// before any request is sent.
type ValidationError = validation.Error

func missing(field string) error {
	return validation.Missing(field)
}

func invalid(field, format string, a ...interface{}) error {
	return validation.Invalid(field, format, a...)
}

// StateConflictError reports an endpoint whose current state does not allow
// the requested action.
type StateConflictError struct {
	EndpointID string
	Message    string
}

func (e *StateConflictError) Error() string {
	return e.Message
}
