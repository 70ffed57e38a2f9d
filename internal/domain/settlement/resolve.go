package settlement

import (
	"context"

	"github.com/petcare/petcare-api/internal/domain/wallet"
)

// WalletResolver creates wallets on first use.
type WalletResolver interface {
	EnsureWallet(ctx context.Context, ownerType wallet.OwnerType, ownerID, currency string) (*wallet.Wallet, error)
}

// Consultation is a paid consultation as reported by the booking service or
// the payment provider.
type Consultation struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required,max=255"`
	BookingID       string `json:"booking_id" validate:"max=255"`
	DoctorID        string `json:"doctor_id" validate:"required,max=255"`
	AmountMinor     int64  `json:"amount_minor" validate:"gt=0"`
	Currency        string `json:"currency" validate:"required,currency"`
}

// ResolveCapture builds the capture for a consultation, ensuring the doctor
// and platform wallets exist in its currency.
func ResolveCapture(ctx context.Context, wallets WalletResolver, c Consultation, feeBps int) (Capture, error) {
	doctor, err := wallets.EnsureWallet(ctx, wallet.OwnerDoctor, c.DoctorID, c.Currency)
	if err != nil {
		return Capture{}, err
	}
	platform, err := wallets.EnsureWallet(ctx, wallet.OwnerAdmin, "", c.Currency)
	if err != nil {
		return Capture{}, err
	}
	return Capture{
		PaymentIntentID:  c.PaymentIntentID,
		BookingID:        c.BookingID,
		AmountMinor:      c.AmountMinor,
		Currency:         c.Currency,
		DoctorWalletID:   doctor.ID,
		PlatformWalletID: platform.ID,
		FeeBps:           feeBps,
	}, nil
}
