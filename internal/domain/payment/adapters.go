package payment

import (
	"context"

	"github.com/petcare/petcare-api/internal/domain/payout"
	"github.com/petcare/petcare-api/internal/domain/refund"
	"github.com/petcare/petcare-api/internal/pkg/stripe"
)

// StripeTransferer sends payouts as Stripe Connect transfers. The payout id
// travels in metadata so transfer webhooks can be matched back.
type StripeTransferer struct {
	client *stripe.Client
}

func NewStripeTransferer(client *stripe.Client) *StripeTransferer {
	return &StripeTransferer{client: client}
}

func (s *StripeTransferer) Transfer(ctx context.Context, t payout.Transfer) (string, error) {
	return s.client.CreateTransfer(ctx, stripe.TransferRequest{
		AmountMinor:    t.AmountMinor,
		Currency:       t.Currency,
		Destination:    t.Destination,
		IdempotencyKey: t.IdempotencyKey,
		Metadata:       map[string]string{stripe.MetaPayoutID: t.PayoutID.String()},
	})
}

// StripeRefunder refunds consultation payments on the card they came from.
type StripeRefunder struct {
	client *stripe.Client
}

func NewStripeRefunder(client *stripe.Client) *StripeRefunder {
	return &StripeRefunder{client: client}
}

func (s *StripeRefunder) Refund(ctx context.Context, r refund.ExternalRefund) (string, error) {
	meta := map[string]string{}
	if r.Reason != "" {
		meta["reason"] = r.Reason
	}
	return s.client.CreateRefund(ctx, stripe.RefundRequest{
		PaymentIntentID: r.PaymentIntentID,
		AmountMinor:     r.AmountMinor,
		IdempotencyKey:  r.IdempotencyKey,
		Metadata:        meta,
	})
}
