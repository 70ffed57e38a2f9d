package refund

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

// WalletPoster is the slice of the wallet aggregate reversals need.
type WalletPoster interface {
	WithTx(ctx context.Context, fn func(tx wallet.Tx) error) error
	CreditTx(ctx context.Context, tx wallet.Tx, walletID uuid.UUID, amount int64, entry *ledger.Entry) error
	DebitTx(ctx context.Context, tx wallet.Tx, walletID uuid.UUID, amount int64, entry *ledger.Entry) error
	Invalidate(ctx context.Context, ids ...uuid.UUID)
}

// Refunder returns money to the payer through the payment provider. It must
// honour IdempotencyKey so that retries never refund twice.
type Refunder interface {
	Refund(ctx context.Context, req ExternalRefund) (string, error)
}

// Projector refreshes derived read models from posted entries.
type Projector interface {
	Project(ctx context.Context, entries ...*ledger.Entry) error
}

type Service struct {
	wallets   WalletPoster
	refunder  Refunder
	projector Projector
}

// NewService wires the handler. refunder and projector may be nil.
func NewService(wallets WalletPoster, refunder Refunder, projector Projector) *Service {
	return &Service{wallets: wallets, refunder: refunder, projector: projector}
}

func (s *Service) check(c *Cancellation) error {
	if c.PaymentIntentID == "" {
		return ErrMissingReference
	}
	if c.RefundAmountMinor < 0 {
		return ErrInvalidAmount
	}
	if c.RefundTo == "" {
		c.RefundTo = TargetNone
	}
	switch c.RefundTo {
	case TargetNone:
	case TargetWallet:
		if c.PayerWalletID == uuid.Nil {
			return ErrPayerWalletRequired
		}
	case TargetExternal:
		if s.refunder == nil {
			return ErrNoRefundChannel
		}
	default:
		return ErrInvalidTarget
	}
	return nil
}

// Reverse debits the doctor's earnings for a payment and refunds the payer
// according to c.RefundTo. Commission stays with the platform.
func (s *Service) Reverse(ctx context.Context, c Cancellation) (*Result, error) {
	if err := s.check(&c); err != nil {
		metrics.Reversals.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}

	logger := log.With().
		Str("payment_intent_id", c.PaymentIntentID).
		Str("booking_id", c.BookingID).
		Str("refund_to", string(c.RefundTo)).
		Str("reason", c.Reason).
		Logger()

	res := &Result{PaymentIntentID: c.PaymentIntentID, RefundTo: c.RefundTo}
	var touched []uuid.UUID

	err := s.wallets.WithTx(ctx, func(tx wallet.Tx) error {
		res.Entries = nil

		prior, err := tx.EntryByKey(ctx, ledger.Key(c.PaymentIntentID, ledger.TypeReversal))
		if err != nil {
			return err
		}
		if prior != nil {
			return ledger.ErrDuplicateEntry
		}

		earnings, err := tx.EntryByKey(ctx, ledger.Key(c.PaymentIntentID, ledger.TypeEarnings))
		if err != nil {
			return err
		}
		if earnings == nil {
			return ErrStaleReversal
		}
		commission, err := tx.EntryByKey(ctx, ledger.Key(c.PaymentIntentID, ledger.TypeCommission))
		if err != nil {
			return err
		}

		gross := earnings.AmountMinor
		if commission != nil {
			gross += commission.AmountMinor
		}
		refundAmount := c.RefundAmountMinor
		if refundAmount == 0 {
			refundAmount = gross
		}
		if refundAmount > gross {
			return ErrRefundExceedsPayment
		}

		res.Currency = earnings.Currency
		res.ReversedMinor = earnings.AmountMinor
		if c.RefundTo != TargetNone {
			res.RefundedMinor = refundAmount
		}

		bookingID := c.BookingID
		if bookingID == "" && earnings.BookingID != nil {
			bookingID = *earnings.BookingID
		}

		touched = []uuid.UUID{earnings.WalletID}
		if c.RefundTo == TargetWallet {
			touched = append(touched, c.PayerWalletID)
		}
		if err := wallet.LockAll(ctx, tx, touched...); err != nil {
			return err
		}

		reversal := ledger.NewEntry(c.PaymentIntentID, bookingID, earnings.Currency, ledger.TypeReversal)
		target, refunded := string(c.RefundTo), res.RefundedMinor
		reversal.RefundTo = &target
		reversal.RefundMinor = &refunded
		if err := s.wallets.DebitTx(ctx, tx, earnings.WalletID, earnings.AmountMinor, reversal); err != nil {
			return err
		}
		res.Entries = append(res.Entries, reversal)

		if c.RefundTo == TargetWallet {
			credit := ledger.NewEntry(c.PaymentIntentID, bookingID, earnings.Currency, ledger.TypeRefund)
			if err := s.wallets.CreditTx(ctx, tx, c.PayerWalletID, refundAmount, credit); err != nil {
				return err
			}
			res.Entries = append(res.Entries, credit)
		}
		return nil
	})

	switch {
	case err == nil:
		s.wallets.Invalidate(ctx, touched...)
		metrics.Reversals.WithLabelValues(metrics.OutcomePosted).Inc()
		logger.Info().Int64("reversed", res.ReversedMinor).Int64("refunded", res.RefundedMinor).Msg("payment reversed")
		s.project(ctx, res.Entries)
	case errors.Is(err, ErrStaleReversal):
		metrics.Reversals.WithLabelValues(metrics.OutcomeStale).Inc()
		logger.Warn().Msg("reversal ignored: payment has no settled earnings")
		return &Result{PaymentIntentID: c.PaymentIntentID, RefundTo: c.RefundTo, Stale: true}, nil
	case errors.Is(err, ledger.ErrDuplicateEntry):
		metrics.Reversals.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		res, err = s.previous(ctx, c.PaymentIntentID)
		if err != nil {
			logger.Error().Err(err).Msg("load previous reversal failed")
			return nil, fmt.Errorf("reverse %s: %w", c.PaymentIntentID, err)
		}
		if res.RefundTo != c.RefundTo {
			logger.Warn().Str("original_refund_to", string(res.RefundTo)).Msg("payment already reversed with another refund target")
		} else {
			logger.Info().Msg("payment already reversed")
		}
	default:
		metrics.Reversals.WithLabelValues(metrics.OutcomeFailed).Inc()
		logger.Error().Err(err).Msg("reversal failed")
		return nil, fmt.Errorf("reverse %s: %w", c.PaymentIntentID, err)
	}

	// The refund target of the first reversal wins. A replay retries the
	// provider call only when both it and the original asked for external.
	if res.RefundTo == TargetExternal && c.RefundTo == TargetExternal {
		refundID, err := s.refunder.Refund(ctx, ExternalRefund{
			PaymentIntentID: c.PaymentIntentID,
			AmountMinor:     res.RefundedMinor,
			Currency:        res.Currency,
			Reason:          c.Reason,
			IdempotencyKey:  ledger.Key(c.PaymentIntentID, ledger.TypeRefund),
		})
		if err != nil {
			logger.Error().Err(err).Msg("external refund failed")
			return nil, fmt.Errorf("external refund %s: %w: %w", c.PaymentIntentID, ErrProviderFailed, err)
		}
		res.ExternalRefundID = refundID
	}
	return res, nil
}

// previous rebuilds the result of the reversal already posted for a payment.
func (s *Service) previous(ctx context.Context, paymentIntentID string) (*Result, error) {
	res := &Result{PaymentIntentID: paymentIntentID, RefundTo: TargetNone, AlreadyReversed: true}
	err := s.wallets.WithTx(ctx, func(tx wallet.Tx) error {
		reversal, err := tx.EntryByKey(ctx, ledger.Key(paymentIntentID, ledger.TypeReversal))
		if err != nil {
			return err
		}
		if reversal == nil {
			return fmt.Errorf("reversal entry for %s not found", paymentIntentID)
		}
		res.Currency = reversal.Currency
		res.ReversedMinor = reversal.AmountMinor
		if reversal.RefundTo != nil {
			res.RefundTo = Target(*reversal.RefundTo)
		}
		if reversal.RefundMinor != nil {
			res.RefundedMinor = *reversal.RefundMinor
		}

		// A posted refund credit means the payer was refunded to a wallet,
		// whatever the reversal row recorded.
		credit, err := tx.EntryByKey(ctx, ledger.Key(paymentIntentID, ledger.TypeRefund))
		if err != nil {
			return err
		}
		if credit != nil {
			res.RefundTo = TargetWallet
			res.RefundedMinor = credit.AmountMinor
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) project(ctx context.Context, entries []*ledger.Entry) {
	if s.projector == nil || len(entries) == 0 {
		return
	}
	if err := s.projector.Project(ctx, entries...); err != nil {
		log.Error().Err(err).Int("entries", len(entries)).Msg("wallet history projection failed")
	}
}
