package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Sentinel conditions the services report. The HTTP layer maps these to
// status codes; callers can branch on them with errors.Is.
var (
	// ErrNotFound covers unknown users, requests and cache keys that are
	// required to exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyDecided is the compare-and-set failure on an override
	// decision: the request left "pending" before this reviewer's write
	// landed. Distinct from a generic conflict so the UI can explain
	// instead of retrying blindly.
	ErrAlreadyDecided = errors.New("override request already decided")

	// ErrExpired marks an action against a pending request whose expiry
	// horizon has elapsed.
	ErrExpired = errors.New("override request expired")

	// ErrForbidden is an authorization failure: the verified caller's role
	// does not permit the operation.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError is malformed input, rejected before any write.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation creates a ValidationError.
func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// HTTPStatus converts service/repo errors into an HTTP status code.
// Keeps handlers clean by centralizing error mapping.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case IsValidation(err):
		return http.StatusBadRequest

	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrAlreadyDecided):
		return http.StatusConflict

	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, ErrExpired):
		return http.StatusGone

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return 499 // client closed request

	default:
		return http.StatusInternalServerError
	}
}
