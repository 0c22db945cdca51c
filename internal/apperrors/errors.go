package apperrors

import (
	"errors"
	"net/http"
)

// Kind is the machine-readable category of a failure
type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindUnauthenticated    Kind = "Unauthenticated"
	KindForbidden          Kind = "Forbidden"
	KindNotFound           Kind = "NotFound"
	KindConflict           Kind = "Conflict"
	KindInvalidPayload     Kind = "InvalidPayload"
	KindInvalidCredentials Kind = "InvalidCredentials"
	KindUploadFailed       Kind = "UploadFailed"
	KindDeleteFailed       Kind = "DeleteFailed"
	KindPersistenceFailed  Kind = "PersistenceFailed"
	KindInvalidID          Kind = "InvalidId"
	KindInternal           Kind = "Internal"
)

// Error carries a kind, a message that is safe to show to clients and
// the underlying cause, which is not.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error      { return New(KindValidation, message) }
func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }
func Forbidden(message string) *Error       { return New(KindForbidden, message) }
func NotFound(message string) *Error        { return New(KindNotFound, message) }
func Conflict(message string) *Error        { return New(KindConflict, message) }
func InvalidPayload(message string) *Error  { return New(KindInvalidPayload, message) }
func InvalidID(message string) *Error       { return New(KindInvalidID, message) }

// KindOf returns the kind of the outermost *Error in the chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the message of err that is safe to show to clients
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the response status code
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindConflict, KindInvalidPayload, KindInvalidID:
		return http.StatusBadRequest
	case KindUnauthenticated, KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUploadFailed, KindDeleteFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
