package xerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common reusable application errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict: resource already exists")
	ErrInternal       = errors.New("internal server error")
	ErrRateLimited    = errors.New("too many requests")
	ErrSessionExpired = errors.New("session expired or invalid")
	ErrBadRequest     = errors.New("bad request")
	ErrUnavailable    = errors.New("backing store unavailable")
)

// Domain errors. Each one maps to a stable reason code returned to callers.
var (
	ErrAlreadyOpen        = errors.New("a jornada is already open for this user")
	ErrNoOpenJornada      = errors.New("no open jornada for this user")
	ErrCompanyRequired    = errors.New("company is required")
	ErrInitialsRequired   = errors.New("initials are required")
	ErrNoSession          = errors.New("no active session")
	ErrNoLastLogin        = errors.New("no last successful login on record")
	ErrSystemNotFound     = errors.New("secondary system not found")
	ErrInvalidBody        = errors.New("invalid body: expected JSON in 'respuestaLMaster' or 'data'")
	ErrInvalidStructure   = errors.New("invalid structure: { success: true, data: { ... } } required")
	ErrCompanyNotSelected = errors.New("company is not one of the user's active companies")
)

var reasons = []struct {
	err  error
	code string
}{
	{ErrAlreadyOpen, "already_open"},
	{ErrNoOpenJornada, "no_open_jornada"},
	{ErrCompanyRequired, "empresa_required"},
	{ErrInitialsRequired, "iniciales_required"},
	{ErrNoSession, "no_session"},
	{ErrNoLastLogin, "no_last_login"},
	{ErrSystemNotFound, "system_not_found"},
	{ErrInvalidBody, "invalid_body"},
	{ErrInvalidStructure, "invalid_structure"},
	{ErrCompanyNotSelected, "company_not_available"},
	{ErrForbidden, "forbidden"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidInput, "invalid_input"},
	{ErrNotFound, "not_found"},
	{ErrConflict, "conflict"},
	{ErrRateLimited, "rate_limited"},
	{ErrSessionExpired, "session_expired"},
	{ErrBadRequest, "bad_request"},
	{ErrUnavailable, "unavailable"},
}

// Reason returns the reason code of the first known sentinel in err's chain,
// or "internal" when none matches.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return "internal"
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAlreadyOpen), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNoOpenJornada), errors.Is(err, ErrNoLastLogin),
		errors.Is(err, ErrSystemNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrUnauthorized), errors.Is(err, ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrCompanyRequired), errors.Is(err, ErrInitialsRequired),
		errors.Is(err, ErrInvalidBody), errors.Is(err, ErrInvalidStructure),
		errors.Is(err, ErrInvalidInput), errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrCompanyNotSelected):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
