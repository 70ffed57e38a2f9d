package payout

import (
	"errors"

	"github.com/petcare/petcare-api/internal/domain/wallet"
)

var (
	ErrPayoutNotFound      = errors.New("payout not found")
	ErrInvalidTransition   = errors.New("payout status transition not allowed")
	ErrNotPending          = errors.New("payout is not pending")
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")
	ErrNoTransferChannel   = errors.New("no transfer channel configured")
	ErrInvalidStatus       = errors.New("unknown payout status")
	ErrProviderFailed      = errors.New("payment provider transfer failed")

	ErrInvalidAmount     = wallet.ErrInvalidAmount
	ErrInsufficientFunds = wallet.ErrInsufficientFunds
	ErrWalletNotFound    = wallet.ErrWalletNotFound
)
