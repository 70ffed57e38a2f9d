package ledger

import (
	"github.com/google/uuid"
)

// Key derives the idempotency key for a payment-scoped entry.
func Key(paymentIntentID string, t Type) string {
	return paymentIntentID + ":" + string(t)
}

// PayoutKey derives the key of the reservation debit for a payout.
func PayoutKey(payoutID uuid.UUID) string {
	return payoutID.String() + ":payout"
}

// PayoutReversalKey derives the key of the compensating credit posted when a
// payout fails.
func PayoutReversalKey(payoutID uuid.UUID) string {
	return payoutID.String() + ":payout_reversal"
}

// NewEntry builds an unposted entry of type t for a payment reference.
// Wallet, direction and amount are filled in by the wallet aggregate.
func NewEntry(paymentIntentID, bookingID, currency string, t Type) *Entry {
	e := &Entry{
		ID:              uuid.New(),
		Currency:        currency,
		PaymentIntentID: paymentIntentID,
		Type:            t,
		IdempotencyKey:  Key(paymentIntentID, t),
	}
	if bookingID != "" {
		e.BookingID = &bookingID
	}
	return e
}
