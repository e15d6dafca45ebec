package engine

import "errors"

// Failure taxonomy. Every operation aborts its whole transaction on any of
// these; there is no partial state change to recover from.
var (
	// ErrInvalidState: operation attempted from the wrong lifecycle state,
	// e.g. acting on a completed or unassigned issue.
	ErrInvalidState = errors.New("invalid lifecycle state")
	// ErrUnauthorized: wrong caller role for the operation.
	ErrUnauthorized = errors.New("caller not authorized")
	// ErrInvalidAmount: stake out of bounds, zero payment, percentage out
	// of range.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAlreadyAttempted: an identity that exited this issue via expiry
	// can never take it again.
	ErrAlreadyAttempted = errors.New("issue already attempted by this account")
	// ErrAlreadyAssigned: exactly one of two racing takes wins.
	ErrAlreadyAssigned = errors.New("issue already assigned")
	// ErrDeadlineNotReached: premature expiry claim.
	ErrDeadlineNotReached = errors.New("deadline not reached")
)
