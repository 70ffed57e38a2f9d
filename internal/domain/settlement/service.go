package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/pkg/metrics"
)

// WalletPoster is the slice of the wallet aggregate the engine needs.
type WalletPoster interface {
	WithTx(ctx context.Context, fn func(tx wallet.Tx) error) error
	CreditTx(ctx context.Context, tx wallet.Tx, walletID uuid.UUID, amount int64, entry *ledger.Entry) error
	Invalidate(ctx context.Context, ids ...uuid.UUID)
}

// Engine posts the commission and earnings legs of a captured payment
// exactly once.
type Engine struct {
	wallets WalletPoster
}

func NewEngine(wallets WalletPoster) *Engine {
	return &Engine{wallets: wallets}
}

func (c *Capture) normalize() error {
	if c.PaymentIntentID == "" {
		return ErrMissingReference
	}
	if c.AmountMinor <= 0 {
		return ErrInvalidAmount
	}
	if c.FeeBps < 0 || c.FeeBps > bpsDenominator {
		return fmt.Errorf("%w: fee bps %d out of range", ErrInvalidAmount, c.FeeBps)
	}
	if c.DoctorWalletID == uuid.Nil || c.PlatformWalletID == uuid.Nil {
		return ErrWalletNotFound
	}
	if c.DoctorWalletID == c.PlatformWalletID {
		return ErrSameWallet
	}
	cur, err := wallet.NormalizeCurrency(c.Currency)
	if err != nil {
		return err
	}
	c.Currency = cur
	return nil
}

// Settle splits the capture and credits both wallets in one transaction.
// A replayed capture returns AlreadySettled with a nil error.
func (e *Engine) Settle(ctx context.Context, c Capture) (*Result, error) {
	if err := c.normalize(); err != nil {
		metrics.Settlements.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}

	fee, earning := Split(c.AmountMinor, c.FeeBps)
	res := &Result{
		PaymentIntentID: c.PaymentIntentID,
		Commission:      fee,
		Earnings:        earning,
		Currency:        c.Currency,
	}

	err := e.wallets.WithTx(ctx, func(tx wallet.Tx) error {
		if err := wallet.LockAll(ctx, tx, c.DoctorWalletID, c.PlatformWalletID); err != nil {
			return err
		}

		legs := []struct {
			walletID uuid.UUID
			amount   int64
			typ      ledger.Type
		}{
			{c.PlatformWalletID, fee, ledger.TypeCommission},
			{c.DoctorWalletID, earning, ledger.TypeEarnings},
		}
		for _, leg := range legs {
			if leg.amount == 0 {
				continue
			}
			entry := ledger.NewEntry(c.PaymentIntentID, c.BookingID, c.Currency, leg.typ)
			if err := e.wallets.CreditTx(ctx, tx, leg.walletID, leg.amount, entry); err != nil {
				return err
			}
			res.Entries = append(res.Entries, entry)
		}
		return nil
	})

	logger := log.With().
		Str("payment_intent_id", c.PaymentIntentID).
		Str("booking_id", c.BookingID).
		Int64("amount", c.AmountMinor).
		Int("fee_bps", c.FeeBps).
		Logger()

	switch {
	case err == nil:
		e.wallets.Invalidate(ctx, c.DoctorWalletID, c.PlatformWalletID)
		metrics.Settlements.WithLabelValues(metrics.OutcomePosted).Inc()
		metrics.SettledMinor.WithLabelValues(c.Currency, string(ledger.TypeCommission)).Add(float64(fee))
		metrics.SettledMinor.WithLabelValues(c.Currency, string(ledger.TypeEarnings)).Add(float64(earning))
		logger.Info().Int64("commission", fee).Int64("earnings", earning).Msg("payment settled")
		return res, nil
	case errors.Is(err, ledger.ErrDuplicateEntry):
		res.AlreadySettled = true
		res.Entries = nil
		metrics.Settlements.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		logger.Info().Msg("payment already settled")
		return res, nil
	default:
		metrics.Settlements.WithLabelValues(metrics.OutcomeFailed).Inc()
		logger.Error().Err(err).Msg("settlement failed")
		return nil, fmt.Errorf("settle %s: %w", c.PaymentIntentID, err)
	}
}
