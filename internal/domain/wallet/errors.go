package wallet

import "errors"

var (
	ErrInvalidAmount     = errors.New("invalid amount: must be a positive integer of minor units")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrCurrencyMismatch  = errors.New("entry currency does not match wallet currency")
	ErrInvalidOwner      = errors.New("invalid wallet owner")
	ErrInvalidCurrency   = errors.New("invalid currency code")
	ErrInvalidEntry      = errors.New("ledger entry requires an idempotency key and reference")
)
