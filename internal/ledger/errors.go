package ledger

import "errors"

// Sentinel errors for the operation taxonomy. Every failure is synchronous
// and terminal: the attempted operation aborts with no partial application
// and nothing is retried internally.
var (
	// ErrPaused rejects funds movement while the pool pause flag is set.
	ErrPaused = errors.New("pool is paused")

	// ErrInvalidAmount rejects a zero or negative amount where a positive
	// one is required.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnauthorized rejects a caller missing the required role.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrAlreadyAuthorized rejects adding an address already in a role set.
	ErrAlreadyAuthorized = errors.New("address already authorized")

	// ErrNotAuthorized rejects removing an address absent from a role set.
	ErrNotAuthorized = errors.New("address not authorized")

	// ErrInsufficientAvailable rejects a treasury withdrawal beyond the
	// available balance.
	ErrInsufficientAvailable = errors.New("insufficient available funds")

	// ErrInsufficientReserve rejects a release or payout beyond the
	// reserved balance, and converts a failed reserve inside a composite
	// operation into a hard failure.
	ErrInsufficientReserve = errors.New("insufficient reserved funds")

	// ErrInsufficientUserBalance rejects a user debit beyond the balance.
	ErrInsufficientUserBalance = errors.New("insufficient user balance")

	// ErrUserNotFound rejects a debit against an address with no entry.
	ErrUserNotFound = errors.New("user not found")

	// ErrReserveFloorViolation rejects a treasury withdrawal that would
	// erode the cushion backing reserved obligations.
	ErrReserveFloorViolation = errors.New("withdrawal violates reserve floor")

	// ErrPoolNotFound rejects an operation against an unknown asset.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrPoolExists rejects creating a pool for an asset that has one.
	ErrPoolExists = errors.New("pool already exists")
)
