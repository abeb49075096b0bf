package workflow

import "errors"

var (
	// ErrBillNotFound is returned when the referenced bill does not exist.
	ErrBillNotFound = errors.New("bill not found")

	// ErrAlreadyTerminal is returned when the bill has been rejected and
	// accepts no further transitions.
	ErrAlreadyTerminal = errors.New("bill is already rejected")

	// ErrGuardViolation is returned when a production matched but its
	// business predicate failed.
	ErrGuardViolation = errors.New("transition guard violation")

	// ErrNoMatchingRule is returned when no production applies to the
	// role/action combination.
	ErrNoMatchingRule = errors.New("no matching workflow transition rule found")

	// ErrInvalidRequest is returned for malformed batch requests before any
	// per-item processing.
	ErrInvalidRequest = errors.New("missing required fields or billIds must be a non-empty array")
)
