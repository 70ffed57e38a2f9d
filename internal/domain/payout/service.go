package payout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/pkg/metrics"
)

// idempotencyNamespace scopes payout ids derived from client keys.
var idempotencyNamespace = uuid.MustParse("6f1c3e0a-52b4-4c1e-9a57-2f0f6d8c9b11")

// WalletLedger is the slice of the wallet aggregate payouts need.
type WalletLedger interface {
	FindByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID, currency string) (*wallet.Wallet, error)
	CreditTx(ctx context.Context, tx wallet.Tx, walletID uuid.UUID, amount int64, entry *ledger.Entry) error
	DebitTx(ctx context.Context, tx wallet.Tx, walletID uuid.UUID, amount int64, entry *ledger.Entry) error
	Invalidate(ctx context.Context, ids ...uuid.UUID)
}

// Transferer sends money to the destination account. It must honour
// IdempotencyKey.
type Transferer interface {
	Transfer(ctx context.Context, t Transfer) (string, error)
}

// Processor manages the payout lifecycle: reserve on request, confirm on
// paid, compensate on failed.
type Processor struct {
	store      Store
	wallets    WalletLedger
	transferer Transferer
}

// NewProcessor wires the processor. transferer may be nil, in which case
// Dispatch fails with ErrNoTransferChannel.
func NewProcessor(store Store, wallets WalletLedger, transferer Transferer) *Processor {
	return &Processor{store: store, wallets: wallets, transferer: transferer}
}

func payoutID(req Request) uuid.UUID {
	if req.IdempotencyKey == "" {
		return uuid.New()
	}
	name := strings.Join([]string{string(req.OwnerType), req.OwnerID, req.IdempotencyKey}, ":")
	return uuid.NewSHA1(idempotencyNamespace, []byte(name))
}

// RequestPayout reserves the amount on the owner's wallet and records a
// pending payout in the same transaction.
func (p *Processor) RequestPayout(ctx context.Context, req Request) (*Payout, error) {
	if req.AmountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	if !req.OwnerType.Valid() {
		return nil, wallet.ErrInvalidOwner
	}
	currency, err := wallet.NormalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	w, err := p.wallets.FindByOwner(ctx, req.OwnerType, req.OwnerID, currency)
	if err != nil {
		return nil, err
	}

	out := &Payout{
		ID:          payoutID(req),
		WalletID:    w.ID,
		OwnerType:   w.OwnerType,
		OwnerID:     w.OwnerID,
		AmountMinor: req.AmountMinor,
		Currency:    currency,
		Status:      StatusPending,
		Destination: req.Destination,
	}
	logger := log.With().
		Str("payout_id", out.ID.String()).
		Str("wallet_id", w.ID.String()).
		Int64("amount", req.AmountMinor).
		Logger()

	entry := ledger.NewEntry(out.ID.String(), "", currency, ledger.TypePayout)
	entry.IdempotencyKey = ledger.PayoutKey(out.ID)

	err = p.store.WithTx(ctx, func(tx Tx) error {
		if err := p.wallets.DebitTx(ctx, tx, w.ID, req.AmountMinor, entry); err != nil {
			return err
		}
		out.LedgerEntryID = entry.ID
		return tx.Insert(ctx, out)
	})
	if errors.Is(err, ledger.ErrDuplicateEntry) || errors.Is(err, ledger.ErrKeyConflict) {
		existing, gerr := p.store.GetByID(ctx, out.ID)
		if gerr != nil {
			return nil, gerr
		}
		if existing.WalletID != w.ID || existing.AmountMinor != req.AmountMinor || existing.Destination != req.Destination {
			logger.Warn().Msg("payout idempotency key reused with a different request")
			return nil, ErrIdempotencyMismatch
		}
		return existing, nil
	}
	if err != nil {
		logger.Warn().Err(err).Msg("payout request rejected")
		return nil, err
	}

	p.wallets.Invalidate(ctx, w.ID)
	metrics.Payouts.WithLabelValues(string(StatusPending)).Inc()
	logger.Info().Msg("payout requested")
	return out, nil
}

// MarkPaid confirms a payout. The reserved amount stays debited.
func (p *Processor) MarkPaid(ctx context.Context, id uuid.UUID, externalTransferID string) (*Payout, error) {
	var out *Payout
	changed := false
	err := p.store.WithTx(ctx, func(tx Tx) error {
		po, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		out = po
		switch po.Status {
		case StatusPaid:
			return nil
		case StatusFailed:
			return ErrInvalidTransition
		}

		now := time.Now()
		po.Status = StatusPaid
		po.ResolvedAt = &now
		if externalTransferID != "" {
			po.ExternalTransferID = &externalTransferID
		}
		changed = true
		return tx.Update(ctx, po)
	})
	if err != nil {
		return nil, fmt.Errorf("mark payout %s paid: %w", id, err)
	}
	if changed {
		metrics.Payouts.WithLabelValues(string(StatusPaid)).Inc()
		log.Info().Str("payout_id", id.String()).Str("transfer_id", externalTransferID).Msg("payout paid")
	}
	return out, nil
}

// MarkFailed returns the reserved amount to the wallet with a compensating
// reversal credit and records the failure.
func (p *Processor) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*Payout, error) {
	var out *Payout
	changed := false
	err := p.store.WithTx(ctx, func(tx Tx) error {
		po, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		out = po
		switch po.Status {
		case StatusFailed:
			return nil
		case StatusPaid:
			return ErrInvalidTransition
		}

		entry := ledger.NewEntry(po.ID.String(), "", po.Currency, ledger.TypeReversal)
		entry.IdempotencyKey = ledger.PayoutReversalKey(po.ID)
		if err := p.wallets.CreditTx(ctx, tx, po.WalletID, po.AmountMinor, entry); err != nil {
			return err
		}

		now := time.Now()
		po.Status = StatusFailed
		po.ResolvedAt = &now
		if reason != "" {
			po.FailureReason = &reason
		}
		changed = true
		return tx.Update(ctx, po)
	})
	if err != nil {
		return nil, fmt.Errorf("mark payout %s failed: %w", id, err)
	}
	if changed {
		p.wallets.Invalidate(ctx, out.WalletID)
		metrics.Payouts.WithLabelValues(string(StatusFailed)).Inc()
		log.Warn().Str("payout_id", id.String()).Str("reason", reason).Msg("payout failed, funds restored")
	}
	return out, nil
}

// Dispatch asks the provider to send a pending payout. The payout id is the
// provider idempotency key, so dispatching twice never pays twice. Status
// changes arrive later through MarkPaid or MarkFailed.
func (p *Processor) Dispatch(ctx context.Context, id uuid.UUID) (string, error) {
	if p.transferer == nil {
		return "", ErrNoTransferChannel
	}
	po, err := p.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if po.Status != StatusPending {
		return "", ErrNotPending
	}

	transferID, err := p.transferer.Transfer(ctx, Transfer{
		PayoutID:       po.ID,
		AmountMinor:    po.AmountMinor,
		Currency:       po.Currency,
		Destination:    po.Destination,
		IdempotencyKey: po.ID.String(),
	})
	if err != nil {
		log.Error().Err(err).Str("payout_id", id.String()).Msg("payout transfer failed")
		return "", fmt.Errorf("dispatch payout %s: %w: %w", id, ErrProviderFailed, err)
	}
	log.Info().Str("payout_id", id.String()).Str("transfer_id", transferID).Msg("payout dispatched")
	return transferID, nil
}

func (p *Processor) Get(ctx context.Context, id uuid.UUID) (*Payout, error) {
	return p.store.GetByID(ctx, id)
}

func (p *Processor) ListByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID string, pg ledger.Pagination) ([]Payout, int, error) {
	return p.store.ListByOwner(ctx, ownerType, ownerID, pg)
}

func (p *Processor) ListByStatus(ctx context.Context, status Status, pg ledger.Pagination) ([]Payout, int, error) {
	if !status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return p.store.ListByStatus(ctx, status, pg)
}
