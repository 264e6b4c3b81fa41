package cryptlex

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrResponseTooLarge is wrapped in a TransportError when a response body
// exceeds the read limit. A partial body is never returned.
var ErrResponseTooLarge = errors.New("response body too large")

// AuthError is returned when Cryptlex rejects a login.
type AuthError struct {
	StatusCode int
	Detail     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("cryptlex authentication: status %d: %s", e.StatusCode, e.Detail)
}

// APIError is returned when Cryptlex answers a request with a non-2xx status.
type APIError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cryptlex %s: status %d: %s", e.Op, e.StatusCode, e.Detail)
}

// Status returns the status to forward to the caller. Anything that is not an
// HTTP error status maps to 502.
func (e *APIError) Status() int {
	if e.StatusCode < 400 || e.StatusCode > 599 {
		return http.StatusBadGateway
	}
	return e.StatusCode
}

// TransportError wraps failures where no usable response was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("cryptlex %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
