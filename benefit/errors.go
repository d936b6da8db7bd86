/*
errors.go - Centralized error taxonomy for the request lifecycle

PURPOSE:
  All error types in one place. The error kind determines recovery:
  validation and budget errors are corrected by the requester and
  resubmitted; stale-state errors mean re-fetch and re-display, never
  blind retry; persistence failures mean the caller's in-memory copy is
  no longer authoritative.

ERROR CATEGORIES:
  1. Validation errors  - Input fails a submission precondition
  2. Budget errors      - Requested amount exceeds remaining entitlement
  3. Identity errors    - Requester's name/department cannot be resolved
  4. Stale-state errors - A decision raced a concurrent transition
  5. Transition errors  - A (state, role, decision) triple not in the table
  6. Store errors       - Not found / persistence failures

USAGE:
  Use errors.Is with the sentinels, errors.As with the structured types:

    if errors.Is(err, benefit.ErrStaleState) {
        // refetch and redisplay
    }
*/
package benefit

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a request id has no persisted record.
	ErrNotFound = errors.New("request not found")

	// ErrBudgetExceeded is returned when a non-training benefit submission
	// exceeds the remaining entitlement for the period.
	ErrBudgetExceeded = errors.New("remaining budget exceeded")

	// ErrStaleState is returned when a decision targets a request that is no
	// longer in the state the actor saw. The caller must re-fetch, not retry.
	ErrStaleState = errors.New("request state changed")

	// ErrIdentityLookup is returned when the requester's department/name
	// cannot be resolved. Submission is refused, never defaulted.
	ErrIdentityLookup = errors.New("identity lookup failed")

	// ErrIllegalTransition is returned for any (state, role, decision)
	// triple absent from the transition table.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a submission precondition failure the requester
// can fix and resubmit.
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

// BudgetExceededError carries the figures the user needs to correct the
// request.
type BudgetExceededError struct {
	Type      Type
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s request for %s exceeds remaining budget %s",
		e.Type, e.Requested, e.Remaining)
}

func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// StaleStateError reports the state mismatch observed on the fresh re-read.
type StaleStateError struct {
	RequestID string
	Expected  Status
	Actual    Status
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("request %s is %s, expected %s", e.RequestID, e.Actual, e.Expected)
}

func (e *StaleStateError) Unwrap() error { return ErrStaleState }

// IllegalTransitionError identifies the rejected triple.
type IllegalTransitionError struct {
	From     Status
	Role     Role
	Decision Decision
	terminal bool
}

func (e *IllegalTransitionError) Error() string {
	if e.terminal {
		return fmt.Sprintf("no transition out of terminal state %s", e.From)
	}
	return fmt.Sprintf("no transition for (%s, %s, %s)", e.From, e.Role, e.Decision)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input and
// correcting the input can succeed.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrBudgetExceeded) ||
		errors.Is(err, ErrIllegalTransition)
}

// IsStale returns true if the caller should re-fetch current state rather
// than retry the same decision.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleState)
}

// IsNotFound returns true if the error indicates a missing request.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
