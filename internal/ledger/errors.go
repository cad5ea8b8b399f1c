package ledger

import "errors"

// Ledger validation errors.
var (
	// ErrInvalidAmount indicates a non-positive amount was passed to a typed
	// ledger operation. Grants, bonuses, refunds, and consumption each carry
	// their own sign; callers never encode direction in the amount.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
	// ErrMissingUserID indicates an empty user identifier.
	ErrMissingUserID = errors.New("ledger: missing user id")
)
