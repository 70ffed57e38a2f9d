package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction of a ledger entry relative to its wallet.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Type is the purpose of an entry. Together with the payment reference it
// forms the idempotency key.
type Type string

const (
	TypeCommission Type = "commission"
	TypeEarnings   Type = "earnings"
	TypeRefund     Type = "refund"
	TypeReversal   Type = "reversal"
	TypePayout     Type = "payout"
)

// Entry is an append-only ledger row.
type Entry struct {
	ID              uuid.UUID `db:"id" json:"id"`
	WalletID        uuid.UUID `db:"wallet_id" json:"wallet_id"`
	Direction       Direction `db:"direction" json:"direction"`
	AmountMinor     int64     `db:"amount_minor" json:"amount_minor"`
	Currency        string    `db:"currency" json:"currency"`
	PaymentIntentID string    `db:"payment_intent_id" json:"payment_intent_id"`
	BookingID       *string   `db:"booking_id" json:"booking_id,omitempty"`
	Type            Type      `db:"type" json:"type"`
	IdempotencyKey  string    `db:"idempotency_key" json:"idempotency_key"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`

	// Set on reversal entries only: where the payer's money went and how much.
	RefundTo    *string `db:"refund_to" json:"refund_to,omitempty"`
	RefundMinor *int64  `db:"refund_minor" json:"refund_minor,omitempty"`
}

// Signed returns the balance delta the entry applies to its wallet.
func (e *Entry) Signed() int64 {
	if e.Direction == DirectionDebit {
		return -e.AmountMinor
	}
	return e.AmountMinor
}

// SameEffect reports whether two entries would apply the same change.
func (e *Entry) SameEffect(other *Entry) bool {
	return e.WalletID == other.WalletID &&
		e.Direction == other.Direction &&
		e.AmountMinor == other.AmountMinor &&
		strings.EqualFold(e.Currency, other.Currency)
}

// Pagination controls list queries.
type Pagination struct {
	Limit  int
	Offset int
}

// Normalize clamps limit into [1,100] and offset to >= 0.
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
