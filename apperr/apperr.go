// Package apperr defines the error kinds returned by the core operations
// so controllers can map them to transport responses in one place.
package apperr

import "net/http"

type Kind int

const (
	Validation Kind = iota
	NotFound
	Conflict
	Auth
	Otp
	Expired
	InvalidCode
	RateLimited
	Precondition
	Signature
	Internal
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Status maps an error kind to the HTTP status the API contract uses.
// Several kinds deliberately map to 400 rather than their "canonical"
// status (e.g. a duplicate email on send-otp is a 400).
func (e *Error) Status() int {
	switch e.Kind {
	case NotFound:
		return http.StatusNotFound
	case Auth:
		return http.StatusUnauthorized
	case RateLimited:
		return http.StatusTooManyRequests
	case Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
