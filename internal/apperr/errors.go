package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an operation outcome. Every client-visible failure
// carries a kind and a human-readable reason; raw store errors and stack
// traces never leave the service.
type Kind string

const (
	Unauthenticated      Kind = "UNAUTHENTICATED"
	IdentityMismatch     Kind = "IDENTITY_MISMATCH"
	Forbidden            Kind = "FORBIDDEN"
	NotFound             Kind = "NOT_FOUND"
	CrossTenantReference Kind = "CROSS_TENANT_REFERENCE"
	InvalidTransition    Kind = "INVALID_TRANSITION"
	StaleState           Kind = "STALE_STATE"
	ValidationFailure    Kind = "VALIDATION_FAILURE"
	Internal             Kind = "INTERNAL"
)

// Error is a classified application error
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a human-readable reason
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Newf creates a classified error with a formatted reason
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and reason to an underlying error. The underlying
// error is kept for logs but never rendered to clients.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf returns the kind of err, or Internal for unclassified errors
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ReasonOf returns the client-safe reason of err
func ReasonOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return "internal server error"
}

// HTTPStatus maps an error kind to an HTTP status code
func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case IdentityMismatch, Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case StaleState, CrossTenantReference:
		return http.StatusConflict
	case InvalidTransition, ValidationFailure:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
