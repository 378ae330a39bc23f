package engine

import (
	"errors"
	"fmt"

	"github.com/dapoalex/AjoPool/internal/validation"
)

var (
	// ErrNotFound is returned when the group, member, contribution, or
	// payout an operation targets does not exist.
	ErrNotFound = errors.New("engine: not found")

	// ErrUnauthorized is returned when a non-admin attempts an admin action.
	ErrUnauthorized = errors.New("engine: caller is not the group admin")

	// ErrInactiveGroup is returned when the group is paused or completed.
	ErrInactiveGroup = errors.New("engine: group is not active")

	// ErrDuplicatePayout is the idempotency guard: a payout already exists
	// for this (group, cycle) pair.
	ErrDuplicatePayout = errors.New("engine: payout already exists for this cycle")

	// ErrNoRecipient is returned when the rotation has no member to pay.
	ErrNoRecipient = errors.New("engine: no recipient for this cycle")

	// ErrConcurrentModification is returned after the optimistic-concurrency
	// retry budget is exhausted.
	ErrConcurrentModification = errors.New("engine: group was modified concurrently, retries exhausted")

	// ErrPayoutNotRetryable is returned when a failed payout has used up its
	// retry budget or is not in a failed state.
	ErrPayoutNotRetryable = errors.New("engine: payout cannot be retried")

	// ErrAlreadyPaid is returned when a contribution is settled twice.
	ErrAlreadyPaid = errors.New("engine: contribution is already paid")
)

// IncompletePaymentsError blocks cycle advancement below the 100% gate. It
// carries the completion percentage for display.
type IncompletePaymentsError struct {
	Percent int
}

func (e *IncompletePaymentsError) Error() string {
	return fmt.Sprintf("engine: cycle is only %d%% paid, 100%% required", e.Percent)
}

// ValidationError carries a failed validation result.
type ValidationError struct {
	Result *validation.Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("engine: validation failed: %v", e.Result.Errors)
}
