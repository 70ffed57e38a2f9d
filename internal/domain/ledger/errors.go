package ledger

import "errors"

var (
	// ErrDuplicateEntry means the idempotency key was already posted. Callers
	// treat it as a successful no-op.
	ErrDuplicateEntry = errors.New("duplicate ledger entry")

	// ErrKeyConflict means the key exists but the stored entry differs in
	// wallet, direction or amount.
	ErrKeyConflict = errors.New("idempotency key reused with a different entry")

	ErrEntryNotFound = errors.New("ledger entry not found")
)
