package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is the stable classification surfaced to clients.
type Kind string

const (
	KindValidation     Kind = "validation_error"
	KindAuthentication Kind = "authentication_error"
	KindPermission     Kind = "permission_error"
	KindNotFound       Kind = "not_found"
	KindNoItems        Kind = "no_items_available"
	KindCooldown       Kind = "cooldown_active"
	KindTransport      Kind = "transport_error"
)

// Error carries a Kind, a human readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// RetryAfter is set for KindCooldown.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Authentication(msg string) error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

func Permission(msg string) error {
	return &Error{Kind: KindPermission, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// NoItems reports an empty queue. It is an expected state, not a fault.
func NoItems() error {
	return &Error{Kind: KindNoItems, Message: "no items available to claim"}
}

func Cooldown(remaining time.Duration) error {
	return &Error{
		Kind:       KindCooldown,
		Message:    fmt.Sprintf("cooldown active, retry in %s", remaining.Round(time.Second)),
		RetryAfter: remaining,
	}
}

// Transport wraps a failed persistence or network call.
func Transport(msg string, err error) error {
	return &Error{Kind: KindTransport, Message: msg, Err: err}
}

// KindOf returns the classification of err. Unclassified errors are
// treated as transport failures.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindTransport
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message for err. Causes of transport
// errors are never exposed.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// RetryAfter returns the cooldown remaining on err, if any.
func RetryAfter(err error) time.Duration {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.RetryAfter
	}
	return 0
}

// HTTPStatus maps a kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindNoItems:
		return http.StatusConflict
	case KindCooldown:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
