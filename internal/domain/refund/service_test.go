package refund_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/refund"
	"github.com/petcare/petcare-api/internal/domain/settlement"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/domain/wallet/wallettest"
)

type refunderStub struct {
	calls []refund.ExternalRefund
	err   error
}

func (r *refunderStub) Refund(ctx context.Context, req refund.ExternalRefund) (string, error) {
	r.calls = append(r.calls, req)
	if r.err != nil {
		return "", r.err
	}
	return "re_" + req.PaymentIntentID, nil
}

type projectorStub struct {
	entries []*ledger.Entry
}

func (p *projectorStub) Project(ctx context.Context, entries ...*ledger.Entry) error {
	p.entries = append(p.entries, entries...)
	return nil
}

type fixture struct {
	store     *wallettest.Store
	wallets   *wallet.Service
	engine    *settlement.Engine
	svc       *refund.Service
	refunder  *refunderStub
	projector *projectorStub
	doctor    *wallet.Wallet
	platform  *wallet.Wallet
	payer     *wallet.Wallet
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := wallettest.New()
	wallets := wallet.NewService(store, nil)
	f := &fixture{
		store:     store,
		wallets:   wallets,
		engine:    settlement.NewEngine(wallets),
		refunder:  &refunderStub{},
		projector: &projectorStub{},
		doctor:    store.Seed(wallet.OwnerDoctor, "doc_1", "USD", 0),
		platform:  store.Seed(wallet.OwnerAdmin, "", "USD", 0),
		payer:     store.Seed(wallet.OwnerUser, "usr_1", "USD", 0),
	}
	f.svc = refund.NewService(wallets, f.refunder, f.projector)
	return f
}

func (f *fixture) settle(t *testing.T, pi string, amount int64) {
	t.Helper()
	_, err := f.engine.Settle(context.Background(), settlement.Capture{
		PaymentIntentID:  pi,
		BookingID:        "bk_" + pi,
		AmountMinor:      amount,
		Currency:         "USD",
		DoctorWalletID:   f.doctor.ID,
		PlatformWalletID: f.platform.ID,
		FeeBps:           1000,
	})
	if err != nil {
		t.Fatalf("settle %s: %v", pi, err)
	}
}

func TestSettleReplayThenReverse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.settle(t, "pi_1", 10000)
	f.settle(t, "pi_1", 10000)
	if f.store.Balance(f.platform.ID) != 1000 || f.store.Balance(f.doctor.ID) != 9000 {
		t.Fatalf("unexpected balances after replay: platform=%d doctor=%d",
			f.store.Balance(f.platform.ID), f.store.Balance(f.doctor.ID))
	}

	res, err := f.svc.Reverse(ctx, refund.Cancellation{PaymentIntentID: "pi_1", Reason: "cancelled by owner"})
	if err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	if res.Stale || res.AlreadyReversed || res.ReversedMinor != 9000 || res.RefundedMinor != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.store.Balance(f.doctor.ID); got != 0 {
		t.Fatalf("expected doctor balance 0, got %d", got)
	}
	if got := f.store.Balance(f.platform.ID); got != 1000 {
		t.Fatalf("expected platform balance to stay 1000, got %d", got)
	}
}

func TestReverseConservesDoctorEarnings(t *testing.T) {
	f := newFixture(t)
	f.settle(t, "pi_1", 12345)

	if _, err := f.svc.Reverse(context.Background(), refund.Cancellation{PaymentIntentID: "pi_1"}); err != nil {
		t.Fatalf("reverse failed: %v", err)
	}

	var sum int64
	for _, e := range f.store.EntriesByPaymentIntent("pi_1") {
		if e.WalletID == f.doctor.ID {
			sum += e.Signed()
		}
	}
	if sum != 0 {
		t.Fatalf("expected doctor entries for pi_1 to net to zero, got %d", sum)
	}
}

func TestReverseUnsettledIsStale(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Reverse(context.Background(), refund.Cancellation{PaymentIntentID: "pi_missing"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !res.Stale {
		t.Fatalf("expected stale result, got %+v", res)
	}
	if n := len(f.store.EntriesByPaymentIntent("pi_missing")); n != 0 {
		t.Fatalf("expected no entries, got %d", n)
	}
	if len(f.projector.entries) != 0 {
		t.Fatal("stale reversal must not be projected")
	}
}

func TestReverseTwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.settle(t, "pi_1", 10000)

	if _, err := f.svc.Reverse(ctx, refund.Cancellation{PaymentIntentID: "pi_1"}); err != nil {
		t.Fatalf("first reverse: %v", err)
	}
	res, err := f.svc.Reverse(ctx, refund.Cancellation{PaymentIntentID: "pi_1"})
	if err != nil {
		t.Fatalf("second reverse: %v", err)
	}
	if !res.AlreadyReversed {
		t.Fatalf("expected AlreadyReversed, got %+v", res)
	}
	if got := f.store.Balance(f.doctor.ID); got != 0 {
		t.Fatalf("expected doctor balance 0, got %d", got)
	}
	if n := len(f.store.Entries(f.doctor.ID)); n != 2 {
		t.Fatalf("expected earnings and one reversal, got %d entries", n)
	}
}

func TestReverseRefundsToWallet(t *testing.T) {
	f := newFixture(t)
	f.settle(t, "pi_1", 10000)

	res, err := f.svc.Reverse(context.Background(), refund.Cancellation{
		PaymentIntentID: "pi_1",
		RefundTo:        refund.TargetWallet,
		PayerWalletID:   f.payer.ID,
	})
	if err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	if res.RefundedMinor != 10000 || len(res.Entries) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.store.Balance(f.payer.ID); got != 10000 {
		t.Fatalf("expected payer balance 10000, got %d", got)
	}
	if len(f.projector.entries) != 2 {
		t.Fatalf("expected 2 projected entries, got %d", len(f.projector.entries))
	}
}

func TestReverseRejectsOversizedRefund(t *testing.T) {
	f := newFixture(t)
	f.settle(t, "pi_1", 10000)

	_, err := f.svc.Reverse(context.Background(), refund.Cancellation{
		PaymentIntentID:   "pi_1",
		RefundTo:          refund.TargetWallet,
		PayerWalletID:     f.payer.ID,
		RefundAmountMinor: 10001,
	})
	if !errors.Is(err, refund.ErrRefundExceedsPayment) {
		t.Fatalf("expected ErrRefundExceedsPayment, got %v", err)
	}
	if got := f.store.Balance(f.doctor.ID); got != 9000 {
		t.Fatalf("expected doctor balance untouched, got %d", got)
	}
}

func TestReverseExternalRefundIsRetriedWithSameKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.settle(t, "pi_1", 10000)

	f.refunder.err = errors.New("provider down")
	if _, err := f.svc.Reverse(ctx, refund.Cancellation{PaymentIntentID: "pi_1", RefundTo: refund.TargetExternal}); err == nil {
		t.Fatal("expected provider error")
	}
	if got := f.store.Balance(f.doctor.ID); got != 0 {
		t.Fatalf("reversal should stay committed, doctor balance %d", got)
	}

	f.refunder.err = nil
	res, err := f.svc.Reverse(ctx, refund.Cancellation{PaymentIntentID: "pi_1", RefundTo: refund.TargetExternal})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !res.AlreadyReversed || res.ExternalRefundID != "re_pi_1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(f.refunder.calls) != 2 {
		t.Fatalf("expected 2 refund calls, got %d", len(f.refunder.calls))
	}
	for _, c := range f.refunder.calls {
		if c.IdempotencyKey != "pi_1:refund" || c.AmountMinor != 10000 || c.Currency != "USD" {
			t.Fatalf("unexpected refund call %+v", c)
		}
	}
}

func TestReverseFailsWhenEarningsWerePaidOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.settle(t, "pi_1", 10000)

	payoutID := uuid.New()
	out := ledger.NewEntry(payoutID.String(), "", "USD", ledger.TypePayout)
	out.IdempotencyKey = ledger.PayoutKey(payoutID)
	if err := f.wallets.Debit(ctx, f.doctor.ID, 8000, out); err != nil {
		t.Fatalf("payout debit: %v", err)
	}

	_, err := f.svc.Reverse(ctx, refund.Cancellation{PaymentIntentID: "pi_1"})
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := f.store.Balance(f.doctor.ID); got != 1000 {
		t.Fatalf("expected doctor balance 1000, got %d", got)
	}
}

func TestReverseValidation(t *testing.T) {
	f := newFixture(t)
	noRefunder := refund.NewService(f.wallets, nil, nil)

	tests := []struct {
		name string
		svc  *refund.Service
		c    refund.Cancellation
		want error
	}{
		{"missing reference", f.svc, refund.Cancellation{}, refund.ErrMissingReference},
		{"negative refund", f.svc, refund.Cancellation{PaymentIntentID: "pi", RefundAmountMinor: -1}, refund.ErrInvalidAmount},
		{"wallet without payer", f.svc, refund.Cancellation{PaymentIntentID: "pi", RefundTo: refund.TargetWallet}, refund.ErrPayerWalletRequired},
		{"external without channel", noRefunder, refund.Cancellation{PaymentIntentID: "pi", RefundTo: refund.TargetExternal}, refund.ErrNoRefundChannel},
		{"unknown target", f.svc, refund.Cancellation{PaymentIntentID: "pi", RefundTo: "cash"}, refund.ErrInvalidTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.svc.Reverse(context.Background(), tt.c); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReverseReplayKeepsOriginalRefundTarget(t *testing.T) {
	tests := []struct {
		name          string
		first, second refund.Target
		wantTarget    refund.Target
		wantCalls     int
		wantPayer     int64
	}{
		{"wallet then external", refund.TargetWallet, refund.TargetExternal, refund.TargetWallet, 0, 10000},
		{"external then wallet", refund.TargetExternal, refund.TargetWallet, refund.TargetExternal, 1, 0},
		{"none then external", refund.TargetNone, refund.TargetExternal, refund.TargetNone, 0, 0},
		{"external then none", refund.TargetExternal, refund.TargetNone, refund.TargetExternal, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.settle(t, "pi_m", 10000)

			cancel := func(target refund.Target) *refund.Result {
				res, err := f.svc.Reverse(ctx, refund.Cancellation{
					PaymentIntentID: "pi_m",
					RefundTo:        target,
					PayerWalletID:   f.payer.ID,
				})
				if err != nil {
					t.Fatalf("reverse to %s: %v", target, err)
				}
				return res
			}

			cancel(tt.first)
			res := cancel(tt.second)

			if !res.AlreadyReversed || res.RefundTo != tt.wantTarget {
				t.Fatalf("expected replay reporting target %s, got %+v", tt.wantTarget, res)
			}
			if len(f.refunder.calls) != tt.wantCalls {
				t.Fatalf("expected %d external refunds, got %d", tt.wantCalls, len(f.refunder.calls))
			}
			if got := f.store.Balance(f.payer.ID); got != tt.wantPayer {
				t.Fatalf("expected payer balance %d, got %d", tt.wantPayer, got)
			}
			if got := f.store.Balance(f.doctor.ID); got != 0 {
				t.Fatalf("expected doctor balance 0, got %d", got)
			}
		})
	}
}

func TestReverseExternalRetryUsesOriginalAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.settle(t, "pi_1", 10000)

	f.refunder.err = errors.New("provider down")
	_, err := f.svc.Reverse(ctx, refund.Cancellation{PaymentIntentID: "pi_1", RefundTo: refund.TargetExternal, RefundAmountMinor: 4000})
	if !errors.Is(err, refund.ErrProviderFailed) {
		t.Fatalf("expected ErrProviderFailed, got %v", err)
	}

	f.refunder.err = nil
	res, err := f.svc.Reverse(ctx, refund.Cancellation{PaymentIntentID: "pi_1", RefundTo: refund.TargetExternal})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if res.RefundedMinor != 4000 {
		t.Fatalf("expected refunded 4000, got %+v", res)
	}
	if last := f.refunder.calls[len(f.refunder.calls)-1]; last.AmountMinor != 4000 {
		t.Fatalf("expected retry for 4000, got %+v", last)
	}
}
