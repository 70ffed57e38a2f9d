package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/petcare/petcare-api/internal/domain/payout"
	"github.com/petcare/petcare-api/internal/domain/refund"
	"github.com/petcare/petcare-api/internal/domain/settlement"
	"github.com/petcare/petcare-api/internal/pkg/stripe"
)

// KindConsultation marks payment intents created for consultations.
const KindConsultation = "consultation"

// Outcome is what handling an event amounted to.
type Outcome string

const (
	OutcomeSettled         Outcome = "settled"
	OutcomeAlreadySettled  Outcome = "already_settled"
	OutcomeReversed        Outcome = "reversed"
	OutcomeAlreadyReversed Outcome = "already_reversed"
	OutcomeStale           Outcome = "stale"
	OutcomePayoutPaid      Outcome = "payout_paid"
	OutcomePayoutFailed    Outcome = "payout_failed"
	OutcomeIgnored         Outcome = "ignored"
)

// ErrInvalidEvent marks events that will never succeed on redelivery.
var ErrInvalidEvent = stripe.ErrInvalidEvent

type Settler interface {
	Settle(ctx context.Context, c settlement.Capture) (*settlement.Result, error)
}

type Reverser interface {
	Reverse(ctx context.Context, c refund.Cancellation) (*refund.Result, error)
}

type PayoutResolver interface {
	MarkPaid(ctx context.Context, id uuid.UUID, externalTransferID string) (*payout.Payout, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*payout.Payout, error)
}

// Service turns verified provider events into ledger operations.
type Service struct {
	wallets  settlement.WalletResolver
	settler  Settler
	reverser Reverser
	payouts  PayoutResolver
	feeBps   int
}

func NewService(wallets settlement.WalletResolver, settler Settler, reverser Reverser, payouts PayoutResolver, feeBps int) *Service {
	return &Service{
		wallets:  wallets,
		settler:  settler,
		reverser: reverser,
		payouts:  payouts,
		feeBps:   feeBps,
	}
}

func (s *Service) Handle(ctx context.Context, ev *stripe.Event) (Outcome, error) {
	switch {
	case ev.Payment != nil:
		return s.handlePayment(ctx, ev.Payment)
	case ev.Refund != nil:
		return s.handleRefund(ctx, ev.Refund)
	case ev.Transfer != nil && ev.Type == stripe.EventTransferCreated:
		return s.handleTransfer(ctx, ev.Transfer, true)
	case ev.Transfer != nil && ev.Type == stripe.EventTransferReversed:
		return s.handleTransfer(ctx, ev.Transfer, false)
	}
	return OutcomeIgnored, nil
}

func (s *Service) handlePayment(ctx context.Context, p *stripe.PaymentSucceeded) (Outcome, error) {
	if p.Kind != KindConsultation {
		log.Debug().Str("payment_intent_id", p.PaymentIntentID).Str("kind", p.Kind).Msg("payment is not a consultation, ignored")
		return OutcomeIgnored, nil
	}
	if p.DoctorID == "" {
		return "", fmt.Errorf("%w: consultation payment %s has no doctor_id", ErrInvalidEvent, p.PaymentIntentID)
	}

	capture, err := settlement.ResolveCapture(ctx, s.wallets, settlement.Consultation{
		PaymentIntentID: p.PaymentIntentID,
		BookingID:       p.BookingID,
		DoctorID:        p.DoctorID,
		AmountMinor:     p.AmountMinor,
		Currency:        p.Currency,
	}, s.feeBps)
	if err != nil {
		return "", err
	}
	res, err := s.settler.Settle(ctx, capture)
	if err != nil {
		return "", err
	}
	if res.AlreadySettled {
		return OutcomeAlreadySettled, nil
	}
	return OutcomeSettled, nil
}

func (s *Service) handleRefund(ctx context.Context, r *stripe.ChargeRefunded) (Outcome, error) {
	res, err := s.reverser.Reverse(ctx, refund.Cancellation{
		PaymentIntentID: r.PaymentIntentID,
		BookingID:       r.BookingID,
		Reason:          "refunded by provider, charge " + r.ChargeID,
		RefundTo:        refund.TargetNone,
	})
	if err != nil {
		return "", err
	}
	switch {
	case res.Stale:
		return OutcomeStale, nil
	case res.AlreadyReversed:
		return OutcomeAlreadyReversed, nil
	}
	return OutcomeReversed, nil
}

func (s *Service) handleTransfer(ctx context.Context, t *stripe.TransferChanged, created bool) (Outcome, error) {
	id, err := uuid.Parse(t.PayoutID)
	if err != nil {
		return "", fmt.Errorf("%w: payout_id %q", ErrInvalidEvent, t.PayoutID)
	}

	if created {
		_, err = s.payouts.MarkPaid(ctx, id, t.TransferID)
	} else {
		_, err = s.payouts.MarkFailed(ctx, id, "transfer reversed")
	}
	switch {
	case errors.Is(err, payout.ErrPayoutNotFound):
		log.Warn().Str("payout_id", t.PayoutID).Str("transfer_id", t.TransferID).Msg("transfer for unknown payout ignored")
		return OutcomeIgnored, nil
	case errors.Is(err, payout.ErrInvalidTransition):
		log.Error().Str("payout_id", t.PayoutID).Str("transfer_id", t.TransferID).Bool("created", created).
			Msg("transfer event contradicts payout state")
		return OutcomeIgnored, nil
	case err != nil:
		return "", err
	}
	if created {
		return OutcomePayoutPaid, nil
	}
	return OutcomePayoutFailed, nil
}
