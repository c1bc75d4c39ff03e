package apperr

import "errors"

// Sentinel errors shared across services and handlers.
var (
	// ErrPoolExhausted means no free key record exists for the requested
	// currency. Operator-actionable: the pool must be restocked before the
	// operation can succeed.
	ErrPoolExhausted = errors.New("key pool exhausted")

	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateAssignment is reported by reconciliation when the same
	// public address is referenced by more than one account. It is never
	// raised on the assignment hot path.
	ErrDuplicateAssignment = errors.New("address assigned to multiple users")

	// ErrImportDuplicate marks a single import row whose address is already
	// present in the pool. Non-fatal: the rest of the batch proceeds.
	ErrImportDuplicate = errors.New("address already in pool")

	// ErrInconsistentRecord is a reconciliation-only finding for pool rows
	// that disagree with the user-side records.
	ErrInconsistentRecord = errors.New("address records inconsistent")

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrProductNotFound     = errors.New("product not found")
	ErrPurchaseNotFound    = errors.New("purchase not found")
	ErrInviteCodeNotFound  = errors.New("invite code not found")
)
