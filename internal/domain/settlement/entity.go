package settlement

import (
	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/domain/ledger"
)

// Capture is a confirmed payment that has to be split between the platform
// and the doctor.
type Capture struct {
	PaymentIntentID  string    `json:"payment_intent_id" validate:"required,max=255"`
	BookingID        string    `json:"booking_id" validate:"max=255"`
	AmountMinor      int64     `json:"amount_minor" validate:"gt=0"`
	Currency         string    `json:"currency" validate:"required,currency"`
	DoctorWalletID   uuid.UUID `json:"doctor_wallet_id"`
	PlatformWalletID uuid.UUID `json:"platform_wallet_id"`
	FeeBps           int       `json:"fee_bps" validate:"gte=0,lte=10000"`
}

// Result describes what a settlement posted.
type Result struct {
	PaymentIntentID string          `json:"payment_intent_id"`
	Commission      int64           `json:"commission_minor"`
	Earnings        int64           `json:"earnings_minor"`
	Currency        string          `json:"currency"`
	AlreadySettled  bool            `json:"already_settled"`
	Entries         []*ledger.Entry `json:"entries,omitempty"`
}
