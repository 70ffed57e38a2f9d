package refund

import (
	"errors"

	"github.com/petcare/petcare-api/internal/domain/wallet"
)

var (
	// ErrStaleReversal means no earnings were posted for the payment. Reverse
	// reports it through Result.Stale instead of returning it.
	ErrStaleReversal = errors.New("reversal requested for an unsettled payment")

	ErrMissingReference     = errors.New("payment intent id is required")
	ErrPayerWalletRequired  = errors.New("payer wallet is required for wallet refunds")
	ErrNoRefundChannel      = errors.New("no external refund channel configured")
	ErrRefundExceedsPayment = errors.New("refund amount exceeds the settled amount")
	ErrInvalidTarget        = errors.New("unknown refund target")
	ErrProviderFailed       = errors.New("payment provider refund failed")
	ErrInvalidAmount        = wallet.ErrInvalidAmount
	ErrInsufficientFunds    = wallet.ErrInsufficientFunds
)
