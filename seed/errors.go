/*
errors.go - Centralized error types for the seed engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is/errors.As; the HTTP layer maps these to
  status codes.

ERROR CATEGORIES:
  1. Validation errors - Malformed input, rejected before touching the store
  2. Business errors - Insufficient balance
  3. Concurrency errors - Version conflicts and retry exhaustion
  4. Lookup errors - Missing entries, unreachable upstream directory

SEE ALSO:
  - balance.go: Produces conflict/concurrent-update errors
  - service.go: Produces validation/insufficient-balance errors
*/
package seed

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrVersionConflict is returned by the store when a balance write lost
	// the optimistic race. The balance manager retries on it.
	ErrVersionConflict = errors.New("balance version conflict")

	// ErrConcurrentUpdate is returned when a version conflict was not
	// resolved within the retry limit. Transient; callers may retry the
	// whole operation.
	ErrConcurrentUpdate = errors.New("concurrent update not resolved")

	// ErrInsufficientBalance is returned when a debit would drive the
	// balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidInput is the base of all validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a ledger entry lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamLookup is returned when the external user directory is
	// unreachable or reports no match. Admin filtering degrades to an empty
	// result on it rather than failing the query.
	ErrUpstreamLookup = errors.New("upstream lookup failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports malformed input with a descriptive message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// InsufficientBalanceError reports a debit that exceeds the available balance.
type InsufficientBalanceError struct {
	UserID    string
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for user %s: available %d, requested %d",
		e.UserID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ConcurrentUpdateError reports retry exhaustion on a contended balance row.
type ConcurrentUpdateError struct {
	UserID   string
	Attempts int
}

func (e *ConcurrentUpdateError) Error() string {
	return fmt.Sprintf("balance for user %s still contended after %d attempts", e.UserID, e.Attempts)
}

func (e *ConcurrentUpdateError) Unwrap() error { return ErrConcurrentUpdate }

// NotFoundError reports a lookup by an identifier that does not exist.
type NotFoundError struct {
	Kind string // e.g. "ledger entry"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the whole operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate) || errors.Is(err, ErrVersionConflict)
}

// IsClientError returns true if the error is due to invalid client input or
// a business-rule violation, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNotFound)
}
