// Package apperr defines the error taxonomy shared by the lifecycle core and
// the HTTP boundary. Every failure leaving the core is one of these kinds so
// the boundary can translate it to a status code without inspecting causes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for boundary translation and retry policy.
type Kind int

const (
	// KindInvalidInput covers user-caused rejections: no file, disallowed
	// type or extension, oversized payload. Never retried.
	KindInvalidInput Kind = iota
	// KindNotFound covers unknown asset ids and missing storage objects.
	KindNotFound
	// KindStorage covers object-store put/get failures. The core fails fast;
	// callers decide whether to retry.
	KindStorage
	// KindRepository covers metadata-store failures, same policy as storage.
	KindRepository
	// KindProcessing covers transformation and output-write failures; the
	// asset record ends up in the failed state.
	KindProcessing
	// KindSignedURL covers link generation failing for an already processed
	// asset. Distinct from "not processed yet" so clients can tell the two
	// apart.
	KindSignedURL
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage_error"
	case KindRepository:
		return "repository_error"
	case KindProcessing:
		return "processing_error"
	case KindSignedURL:
		return "signed_url_error"
	default:
		return "unknown"
	}
}

// Error carries a kind, a client-safe message and an optional wrapped cause.
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

// New builds an Error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf extracts the kind from err; ok is false for untyped errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// HTTPStatus maps an error to the response status the boundary should use.
func HTTPStatus(err error) int {
	kind, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage returns the message safe to show clients. Untyped errors are
// collapsed to a generic message so internal detail never leaks.
func ClientMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
