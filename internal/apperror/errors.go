// Package apperror defines the error taxonomy shared by services and
// handlers. Services return *Error values (usually wrapped); handlers map
// them to HTTP status codes with HTTPStatus.
package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindForbidden
	KindNotFound
	KindConflict
	KindStateConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStateConflict:
		return "state_conflict"
	}
	return "unknown"
}

// Error is an application error with a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Field   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Is reports whether target is a kind sentinel (or an *Error) of the same kind,
// so errors.Is(err, apperror.ErrValidation) works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Kind sentinels for errors.Is.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrStateConflict  = &Error{Kind: KindStateConflict}
)

// Validation creates a validation error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// FieldValidation creates a validation error tied to a request field.
func FieldValidation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// Authentication creates a credential mismatch error. The message is kept
// generic so callers cannot tell which credential was wrong.
func Authentication() *Error {
	return &Error{Kind: KindAuthentication, Message: "invalid credentials"}
}

// Forbidden creates a permission error.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound creates a not found error for the named resource.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Conflict creates a uniqueness violation error.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// StateConflict creates an error for an invalid or raced state transition.
func StateConflict(message string) *Error {
	return &Error{Kind: KindStateConflict, Message: message}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus maps err to a response status. Uniqueness conflicts are
// reported as 400 like other input errors; non-application errors are 500.
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
