package payout

import (
	"context"

	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
)

// Store persists payout requests. Its transactions double as wallet
// transactions so that the reservation debit and the payout row commit
// together.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payout, error)
	ListByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID string, p ledger.Pagination) ([]Payout, int, error)
	ListByStatus(ctx context.Context, status Status, p ledger.Pagination) ([]Payout, int, error)
}

type Tx interface {
	wallet.Tx

	Insert(ctx context.Context, p *Payout) error
	// Lock returns the payout row locked for update.
	Lock(ctx context.Context, id uuid.UUID) (*Payout, error)
	Update(ctx context.Context, p *Payout) error
}
