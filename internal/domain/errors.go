/**
 * @description
 * Tagged error taxonomy shared by the fundraising ledger and workflow engine.
 * Every state-machine operation fails with a DomainError carrying one of the
 * codes below so transports can map it without string matching.
 */
package domain

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the class of a domain failure.
type ErrorCode string

const (
	ErrorInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrorInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	ErrorWindowExpired          ErrorCode = "WINDOW_EXPIRED"
	ErrorInvariantViolation     ErrorCode = "INVARIANT_VIOLATION"
	ErrorConcurrencyConflict    ErrorCode = "CONCURRENCY_CONFLICT"
	ErrorNotEligible            ErrorCode = "NOT_ELIGIBLE"
	ErrorForbidden              ErrorCode = "FORBIDDEN"
)

// DomainError is a structured business error.
type DomainError struct {
	Code    ErrorCode
	Field   string
	Message string
}

// Error returns the formatted domain error string.
func (e DomainError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
}

// NewDomainError creates a domain error with code, field, and message.
func NewDomainError(code ErrorCode, field, message string) error {
	return DomainError{Code: code, Field: field, Message: message}
}

// CodeOf extracts the domain code from err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var de DomainError
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given domain code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}
