package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	PersistenceFailure Kind = iota
	AuthenticationRequired
	AuthorizationDenied
	NotFound
	ValidationFailed
	ConflictExists
)

func (k Kind) String() string {
	switch k {
	case AuthenticationRequired:
		return "authentication_required"
	case AuthorizationDenied:
		return "authorization_denied"
	case NotFound:
		return "not_found"
	case ValidationFailed:
		return "validation_failed"
	case ConflictExists:
		return "conflict_exists"
	default:
		return "persistence_failure"
	}
}

// Error carries a user facing message next to the kind, Err is only for logs
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, &Error{Kind: NotFound}) match on kind alone
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthenticated(message string) *Error { return New(AuthenticationRequired, message) }
func Forbidden(message string) *Error       { return New(AuthorizationDenied, message) }
func NotFoundf(format string, a ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, a...))
}
func Invalid(message string) *Error  { return New(ValidationFailed, message) }
func Conflict(message string) *Error { return New(ConflictExists, message) }

func Persistence(err error) *Error {
	return Wrap(PersistenceFailure, "Internal server error", err)
}

// KindOf reports PersistenceFailure for anything that isn't an *Error
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return PersistenceFailure
}

// Message never exposes the wrapped cause of unexpected failures
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case AuthenticationRequired:
		return http.StatusUnauthorized
	case AuthorizationDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case ValidationFailed:
		return http.StatusBadRequest
	case ConflictExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
