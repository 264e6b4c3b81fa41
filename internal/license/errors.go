package license

import (
	"errors"
	"strings"
)

// ErrUnauthorized is returned when the caller cannot be authorized. It never
// says which part of the credentials was wrong.
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError reports client input that cannot be forwarded upstream.
type ValidationError struct {
	Message string
	// Fields holds the public names of the offending fields.
	Fields []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func missingFields(names ...string) *ValidationError {
	return &ValidationError{
		Message: "missing required field(s): " + strings.Join(names, ", "),
		Fields:  names,
	}
}

func invalidField(name, reason string) *ValidationError {
	return &ValidationError{
		Message: name + " " + reason,
		Fields:  []string{name},
	}
}
