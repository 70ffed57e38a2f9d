package wallet

import (
	"time"

	"github.com/google/uuid"
)

// OwnerType identifies who a wallet belongs to.
type OwnerType string

const (
	OwnerAdmin  OwnerType = "admin"
	OwnerDoctor OwnerType = "doctor"
	OwnerUser   OwnerType = "user"
)

func (o OwnerType) Valid() bool {
	switch o {
	case OwnerAdmin, OwnerDoctor, OwnerUser:
		return true
	}
	return false
}

// Wallet holds a materialized balance. The ledger is the source of truth;
// BalanceMinor always equals credits minus debits over the wallet's entries.
type Wallet struct {
	ID           uuid.UUID `db:"id" json:"id"`
	OwnerType    OwnerType `db:"owner_type" json:"owner_type"`
	OwnerID      *string   `db:"owner_id" json:"owner_id,omitempty"`
	Currency     string    `db:"currency" json:"currency"`
	BalanceMinor int64     `db:"balance_minor" json:"balance_minor"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Owner returns the owner id or an empty string for ownerless wallets.
func (w *Wallet) Owner() string {
	if w.OwnerID == nil {
		return ""
	}
	return *w.OwnerID
}

// Reconciliation compares the materialized balance with a ledger re-sum.
type Reconciliation struct {
	WalletID   uuid.UUID `db:"wallet_id" json:"wallet_id"`
	Balance    int64     `db:"balance_minor" json:"balance_minor"`
	LedgerSum  int64     `db:"ledger_sum" json:"ledger_sum"`
	Drift      int64     `db:"-" json:"drift"`
	Consistent bool      `db:"-" json:"consistent"`
}

func newReconciliation(walletID uuid.UUID, balance, sum int64) *Reconciliation {
	return &Reconciliation{
		WalletID:   walletID,
		Balance:    balance,
		LedgerSum:  sum,
		Drift:      balance - sum,
		Consistent: balance == sum,
	}
}
