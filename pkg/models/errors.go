package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures so the HTTP layer can map them to a status
// without inspecting messages.
type ErrorKind string

const (
	KindAuth          ErrorKind = "auth"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindTransport     ErrorKind = "transport"
	KindRetrieval     ErrorKind = "retrieval"
	KindProvisioning  ErrorKind = "provisioning"
	KindRegistration  ErrorKind = "registration"
	KindNotFound      ErrorKind = "not_found"
)

// Error is the single error type returned across service boundaries.
// Code carries a provider result code when one exists (0 otherwise).
type Error struct {
	Kind    ErrorKind
	Op      string
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Op == "" {
		return string(e.Kind) + ": " + msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind onto the status returned to API callers.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAuth:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTransport, KindRetrieval, KindProvisioning, KindRegistration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind ErrorKind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// NewAuthError reports a missing or malformed credential.
func NewAuthError(op, format string, args ...any) *Error {
	return newError(KindAuth, op, nil, format, args...)
}

// NewValidationError reports a malformed or incomplete request body.
func NewValidationError(op, format string, args ...any) *Error {
	return newError(KindValidation, op, nil, format, args...)
}

// NewConfigurationError reports required configuration that is absent.
func NewConfigurationError(op, format string, args ...any) *Error {
	return newError(KindConfiguration, op, nil, format, args...)
}

// NewTransportError wraps a network failure or a non-2xx upstream status.
func NewTransportError(op string, err error, format string, args ...any) *Error {
	return newError(KindTransport, op, err, format, args...)
}

// NewRetrievalError reports a knowledge provider failure.
func NewRetrievalError(op string, err error, format string, args ...any) *Error {
	return newError(KindRetrieval, op, err, format, args...)
}

// NewProvisioningError reports a failed agent or instance create/update/delete.
func NewProvisioningError(op string, code int, err error, format string, args ...any) *Error {
	e := newError(KindProvisioning, op, err, format, args...)
	e.Code = code
	return e
}

// NewRegistrationError reports a robot registration failure other than
// "already exists".
func NewRegistrationError(op string, code int, err error, format string, args ...any) *Error {
	e := newError(KindRegistration, op, err, format, args...)
	e.Code = code
	return e
}

// NewNotFoundError reports a referenced resource that is absent.
func NewNotFoundError(op, format string, args ...any) *Error {
	return newError(KindNotFound, op, nil, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// HTTPStatusOf returns the status for err, defaulting to 500.
func HTTPStatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// CodeOf returns the provider result code carried by err, or 0.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
