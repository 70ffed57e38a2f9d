package settlement

import (
	"errors"

	"github.com/petcare/petcare-api/internal/domain/wallet"
)

var (
	ErrInvalidAmount    = wallet.ErrInvalidAmount
	ErrWalletNotFound   = wallet.ErrWalletNotFound
	ErrMissingReference = errors.New("payment intent id is required")
	ErrSameWallet       = errors.New("doctor and platform wallets must differ")
)
