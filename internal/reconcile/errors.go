package reconcile

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes reconciliation failures.
type ErrorCode string

const (
	// CodeInvalidObservation indicates both email and phone were absent.
	CodeInvalidObservation ErrorCode = "INVALID_OBSERVATION"

	// CodeStoreUnavailable indicates a store read or write failed and the
	// unit of work was rolled back.
	CodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// CodeInvariantViolation indicates the stored graph contradicts the
	// component invariants. It signals a bug or corrupted data, never bad input.
	CodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"

	// CodeNotFound indicates a contact id that names no live contact.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// Error is returned by every Engine operation.
//
// Message is safe for logs but not for clients; transports map Code to a
// generic response.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Op names the pipeline stage that failed (e.g. "resolve", "promote").
	Op string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Op, e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsInvalidObservation returns true if the error rejects an empty observation.
// Uses errors.As to handle wrapped errors.
func IsInvalidObservation(err error) bool {
	return hasCode(err, CodeInvalidObservation)
}

// IsStoreUnavailable returns true if the error came from the store.
// Uses errors.As to handle wrapped errors.
func IsStoreUnavailable(err error) bool {
	return hasCode(err, CodeStoreUnavailable)
}

// IsInvariantViolation returns true if the error reports a broken invariant.
// Uses errors.As to handle wrapped errors.
func IsInvariantViolation(err error) bool {
	return hasCode(err, CodeInvariantViolation)
}

// IsNotFound returns true if the error reports an unknown contact id.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

func hasCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// storeError wraps a store failure. Errors that already carry a code keep it.
func storeError(op string, err error) error {
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	return &Error{
		Code:    CodeStoreUnavailable,
		Message: "store operation failed",
		Op:      op,
		Err:     err,
	}
}

// invariantError reports a violated invariant.
func invariantError(op, format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvariantViolation,
		Message: fmt.Sprintf(format, args...),
		Op:      op,
	}
}
