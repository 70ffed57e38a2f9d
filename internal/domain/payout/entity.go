package payout

import (
	"time"

	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/domain/wallet"
)

// Status of a payout request. pending moves to paid or failed exactly once.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed:
		return true
	}
	return false
}

// Payout is a withdrawal from a wallet to an external account. The amount is
// reserved by a payout debit when the request is created.
type Payout struct {
	ID                 uuid.UUID        `db:"id" json:"id"`
	WalletID           uuid.UUID        `db:"wallet_id" json:"wallet_id"`
	OwnerType          wallet.OwnerType `db:"owner_type" json:"owner_type"`
	OwnerID            *string          `db:"owner_id" json:"owner_id,omitempty"`
	AmountMinor        int64            `db:"amount_minor" json:"amount_minor"`
	Currency           string           `db:"currency" json:"currency"`
	Status             Status           `db:"status" json:"status"`
	Destination        string           `db:"destination" json:"destination"`
	LedgerEntryID      uuid.UUID        `db:"ledger_entry_id" json:"ledger_entry_id"`
	ExternalTransferID *string          `db:"external_transfer_id" json:"external_transfer_id,omitempty"`
	FailureReason      *string          `db:"failure_reason" json:"failure_reason,omitempty"`
	RequestedAt        time.Time        `db:"requested_at" json:"requested_at"`
	ResolvedAt         *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
}

func (p *Payout) Owner() string {
	if p.OwnerID == nil {
		return ""
	}
	return *p.OwnerID
}

// Request asks for a payout. IdempotencyKey is optional; when set, retries
// with the same key return the original payout.
type Request struct {
	OwnerType      wallet.OwnerType
	OwnerID        string
	AmountMinor    int64
	Currency       string
	Destination    string
	IdempotencyKey string
}

// Transfer is the side effect handed to the payment provider on dispatch.
type Transfer struct {
	PayoutID       uuid.UUID
	AmountMinor    int64
	Currency       string
	Destination    string
	IdempotencyKey string
}
