// Package apperr classifies failures so transports and schedulers can decide
// between surfacing, retrying, falling back or pruning.
package apperr

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// Reference marks. Test with errors.Is or the Is* helpers below.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrTransient    = errors.New("upstream unavailable")
	ErrInvalidToken = errors.New("push token invalid")
	ErrUnauthorized = errors.New("unauthorized")
)

func Validation(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func NotFound(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

func Conflict(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConflict)
}

func Unauthorized(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrUnauthorized)
}

// Transient wraps a timeout or connection failure of an upstream call.
func Transient(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, op), ErrTransient)
}

// InvalidToken wraps a delivery failure that will never succeed for this token.
func InvalidToken(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrInvalidToken)
}

func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }
func IsTransient(err error) bool    { return errors.Is(err, ErrTransient) }
func IsInvalidToken(err error) bool { return errors.Is(err, ErrInvalidToken) }
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// Status maps an error to the HTTP status a client should see.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsUnauthorized(err):
		return http.StatusForbidden
	case IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show a client. Internal and upstream
// failures are masked.
func Message(err error) string {
	switch Status(err) {
	case http.StatusOK:
		return ""
	case http.StatusInternalServerError:
		return MsgUnknown
	case http.StatusServiceUnavailable:
		return MsgUpstreamDown
	}
	return err.Error()
}
