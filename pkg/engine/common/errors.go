package common

import "errors"

// Error taxonomy for the engine. Callers branch with errors.Is; storage
// implementations wrap these with fmt.Errorf("...: %w", ...).
//
// Pool exhaustion is deliberately absent: a pass that runs out of GPUs is a
// normal terminal state, unmatched demand simply stays pending.

var (
	// ErrNotFound: Unknown GPU, owner, job or order identity.
	// Surfaced to the caller, never retried automatically.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInterval: Booking interval with end <= start.
	// Rejected before anything is persisted.
	ErrInvalidInterval = errors.New("invalid interval: end must be after start")

	// ErrConflictingReservation: Requested window overlaps a committed
	// booking for the same GPU. Caller may retry with a different window.
	ErrConflictingReservation = errors.New("conflicting reservation")

	// ErrPersistence: The backing store could not commit. The whole
	// decision for that unit is treated as not-happened.
	ErrPersistence = errors.New("persistence failure")
)
