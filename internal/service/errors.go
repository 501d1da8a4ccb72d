package service

import (
	"errors"
	"fmt"

	"leavemgmt/internal/crypto"
	"leavemgmt/internal/leavecalc"
)

var (
	// ErrUnauthenticated covers a missing, unknown or expired session and failed logins.
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrInvalidSession     = fmt.Errorf("%w: invalid session", ErrUnauthenticated)
	ErrSessionExpired     = fmt.Errorf("%w: session expired", ErrUnauthenticated)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)

	// ErrForbidden is returned when the principal holds the wrong role.
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidSetupCode = fmt.Errorf("%w: invalid setup code", ErrForbidden)

	ErrInvalidRange    = leavecalc.ErrInvalidRange
	ErrInvalidDecision = errors.New("invalid decision")
	ErrAlreadyDecided  = errors.New("leave request already decided")
	ErrNotFound        = errors.New("not found")

	// ErrConflict is returned when a uniqueness rule would be broken.
	ErrConflict           = errors.New("conflict")
	ErrAdminAlreadyExists = fmt.Errorf("%w: admin already exists", ErrConflict)
	ErrSetupAlreadyUsed   = fmt.Errorf("%w: admin setup already used", ErrConflict)
	ErrEmployeeCodeTaken  = fmt.Errorf("%w: employee code already exists", ErrConflict)

	// ErrValidation wraps malformed input such as unparsable dates or ids.
	ErrValidation = errors.New("validation failed")

	ErrAuthenticationFailure = crypto.ErrAuthenticationFailure
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorKind maps sentinel errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrInvalidDecision):
		return "invalid_decision"
	case errors.Is(err, ErrAlreadyDecided):
		return "already_decided"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAuthenticationFailure):
		return "authentication_failure"
	}
	return "unexpected"
}
