package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/domain/ledger"
)

// Store is the persistence boundary of the wallet aggregate.
type Store interface {
	// WithTx runs fn in a single transaction. fn's error rolls it back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error)
	GetByOwner(ctx context.Context, ownerType OwnerType, ownerID, currency string) (*Wallet, error)
	ListByOwner(ctx context.Context, ownerType OwnerType, ownerID string) ([]Wallet, error)
	Ensure(ctx context.Context, ownerType OwnerType, ownerID, currency string) (*Wallet, error)
	LedgerSum(ctx context.Context, id uuid.UUID) (int64, error)
	ListDrift(ctx context.Context, limit int) ([]Reconciliation, error)
}

// Tx is the set of row-level operations a balance mutation needs.
// Implementations serialize LockWallet callers on the same wallet until the
// surrounding transaction ends.
type Tx interface {
	LockWallet(ctx context.Context, id uuid.UUID) (*Wallet, error)
	SetBalance(ctx context.Context, id uuid.UUID, balance int64) error
	InsertEntry(ctx context.Context, e *ledger.Entry) error
	EntryByKey(ctx context.Context, key string) (*ledger.Entry, error)
}
