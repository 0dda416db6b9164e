// Package apperr defines the error taxonomy shared across the service and
// its mapping onto HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies a class of failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindConfiguration
	KindProvider
)

// Error carries a failure kind, a user-facing message and an optional
// wrapped cause. Status overrides the kind's default HTTP status when the
// upstream system (the identity provider) supplied one.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match any error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is checks.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrUnauthorized  = &Error{Kind: KindUnauthorized}
	ErrForbidden     = &Error{Kind: KindForbidden}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrProvider      = &Error{Kind: KindProvider}
)

// Validation reports malformed input, raised before any side effect; field
// names the offending input field.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field}
}

// Unauthorized reports a missing or invalid caller identity.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Forbidden reports a role/permission mismatch.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound reports a missing entity or remote object.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a unique-constraint violation; field names the
// conflicting column.
func Conflict(field, message string) *Error {
	return &Error{Kind: KindConflict, Message: message, Field: field}
}

// Configuration reports missing authorization metadata, a deployment defect.
func Configuration(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// Provider wraps an identity-provider failure, preserving its native status.
func Provider(status int, code string, err error) *Error {
	msg := code
	if msg == "" {
		msg = "identity provider error"
	}
	return &Error{Kind: KindProvider, Message: msg, Status: status, Err: err}
}

// StatusOf maps an error to the HTTP status that must be returned.
func StatusOf(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MessageOf extracts the single human-readable message for the response
// envelope. Internal errors never leak their cause.
func MessageOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Internal Server Error"
	}
	switch e.Kind {
	case KindInternal, KindConfiguration:
		if e.Kind == KindConfiguration {
			return "Feature Not Accessible"
		}
		return "Internal Server Error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return http.StatusText(StatusOf(err))
	}
	return msg
}
