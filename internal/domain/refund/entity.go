package refund

import (
	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/domain/ledger"
)

// Target selects where the payer's money goes back to.
type Target string

const (
	// TargetNone posts only the doctor reversal. Used when the provider has
	// already returned the money, e.g. a charge.refunded webhook.
	TargetNone Target = "none"
	// TargetWallet credits the payer's wallet in the same transaction.
	TargetWallet Target = "wallet"
	// TargetExternal asks the payment provider to refund after commit.
	TargetExternal Target = "external"
)

// Cancellation requests the reversal of a settled payment.
type Cancellation struct {
	PaymentIntentID   string    `json:"payment_intent_id" validate:"required,max=255"`
	BookingID         string    `json:"booking_id" validate:"max=255"`
	Reason            string    `json:"reason" validate:"max=500"`
	RefundTo          Target    `json:"refund_to" validate:"refund_target"`
	PayerWalletID     uuid.UUID `json:"payer_wallet_id"`
	RefundAmountMinor int64     `json:"refund_amount_minor" validate:"gte=0"`
}

// Result describes what a reversal did.
type Result struct {
	PaymentIntentID  string          `json:"payment_intent_id"`
	Currency         string          `json:"currency,omitempty"`
	ReversedMinor    int64           `json:"reversed_minor"`
	RefundedMinor    int64           `json:"refunded_minor"`
	RefundTo         Target          `json:"refund_to"`
	Stale            bool            `json:"stale"`
	AlreadyReversed  bool            `json:"already_reversed"`
	ExternalRefundID string          `json:"external_refund_id,omitempty"`
	Entries          []*ledger.Entry `json:"entries,omitempty"`
}

// ExternalRefund is the side effect handed to the payment provider.
type ExternalRefund struct {
	PaymentIntentID string
	AmountMinor     int64
	Currency        string
	Reason          string
	IdempotencyKey  string
}
