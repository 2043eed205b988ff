package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrAuthFailed indicates the credential was rejected by the server
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrServerOffline indicates the server is unreachable
	ErrServerOffline = errors.New("server is unreachable")

	// ErrInvalidGrade indicates a grade outside the accepted range
	ErrInvalidGrade = errors.New("invalid grade")

	// ErrWrongQueue indicates an action was applied to a card from another queue
	ErrWrongQueue = errors.New("card does not belong to the expected queue")

	// ErrNotAuthenticated indicates a request was attempted without a token
	ErrNotAuthenticated = errors.New("not authenticated")
)

// ServerError is a non-2xx application response.
type ServerError struct {
	Method string
	Path   string
	Status int
	Body   string
}

// Error implements the error interface
func (e *ServerError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Status)
}

// IsServerError reports whether err wraps a *ServerError.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}
