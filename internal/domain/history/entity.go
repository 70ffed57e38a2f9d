package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
)

// Kind is the user-facing classification of a history row.
type Kind string

const (
	KindCancelRefund    Kind = "CONSULTATION_CANCEL_REFUND"
	KindCancelDeduction Kind = "CONSULTATION_CANCEL_DEDUCTION"
)

// Record is a derived WalletHistory row. Records are produced only by
// projecting ledger entries and carry the id of their source entry.
type Record struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	LedgerEntryID uuid.UUID        `db:"ledger_entry_id" json:"ledger_entry_id"`
	WalletID      uuid.UUID        `db:"wallet_id" json:"wallet_id"`
	OwnerType     wallet.OwnerType `db:"owner_type" json:"owner_type"`
	OwnerID       *string          `db:"owner_id" json:"owner_id,omitempty"`
	Currency      string           `db:"currency" json:"currency"`
	AmountMinor   int64            `db:"amount_minor" json:"amount_minor"`
	Direction     ledger.Direction `db:"direction" json:"direction"`
	Type          Kind             `db:"type" json:"type"`
	ReferenceID   string           `db:"reference_id" json:"reference_id"`
	BookingID     *string          `db:"booking_id" json:"booking_id,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// KindFor classifies a ledger entry. Entries that are not shown in history
// report false.
func KindFor(e *ledger.Entry) (Kind, bool) {
	switch {
	case e.Type == ledger.TypeReversal && e.Direction == ledger.DirectionDebit:
		return KindCancelDeduction, true
	case e.Type == ledger.TypeRefund && e.Direction == ledger.DirectionCredit:
		return KindCancelRefund, true
	}
	return "", false
}

// FromEntry builds the record for e, attributed to the wallet owner.
func FromEntry(e *ledger.Entry, w *wallet.Wallet) (*Record, bool) {
	kind, ok := KindFor(e)
	if !ok {
		return nil, false
	}
	return &Record{
		ID:            uuid.New(),
		LedgerEntryID: e.ID,
		WalletID:      e.WalletID,
		OwnerType:     w.OwnerType,
		OwnerID:       w.OwnerID,
		Currency:      e.Currency,
		AmountMinor:   e.AmountMinor,
		Direction:     e.Direction,
		Type:          kind,
		ReferenceID:   e.PaymentIntentID,
		BookingID:     e.BookingID,
		CreatedAt:     e.CreatedAt,
	}, true
}
