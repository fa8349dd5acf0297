// Package apperr defines the error categories shared by handlers, stores and
// the notification engines.
//
// Errors are wrapped with %w so callers can test categories with errors.Is
// while keeping the underlying detail for logs.
package apperr

import (
	"context"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrAuthRejected means the signed payload was missing, malformed, expired
	// or did not match. It is never retried.
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrValidation means the caller supplied malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrTransport means the messaging transport did not accept a message.
	ErrTransport = errors.New("message transport failed")

	// ErrStorage means a persistence read or write failed.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound means the addressed record does not exist or is not visible
	// to the caller.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller is authenticated but may not perform the
	// operation.
	ErrForbidden = errors.New("forbidden")
)

// Status maps an error to the HTTP status a synchronous caller receives.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuthRejected):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, mongo.ErrNoDocuments):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a short machine-readable code for the error category.
func Code(err error) string {
	switch Status(err) {
	case http.StatusUnauthorized:
		return "auth_rejected"
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusBadGateway:
		return "transport_failure"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "storage_failure"
	}
}

// Storage wraps err as a storage failure unless it already carries a
// category or is nil.
func Storage(err error) error {
	if err == nil || categorized(err) {
		return err
	}
	return errors.Join(ErrStorage, err)
}

func categorized(err error) bool {
	for _, c := range []error{ErrAuthRejected, ErrValidation, ErrTransport, ErrStorage, ErrNotFound, ErrForbidden} {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}
