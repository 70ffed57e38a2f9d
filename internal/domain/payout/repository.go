package payout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
)

const queryTimeout = 3 * time.Second

const payoutColumns = `id, wallet_id, owner_type, owner_id, amount_minor, currency, status, destination,
	ledger_entry_id, external_transfer_id, failure_reason, requested_at, resolved_at`

// Repository is the Postgres implementation of Store.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{PgTx: wallet.NewTx(tx)}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Payout, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Payout
	err := r.db.GetContext(ctx, &p, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPayoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payout: %w", err)
	}
	return &p, nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID string, p ledger.Pagination) ([]Payout, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	p = p.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM payout_requests
		WHERE owner_type = $1 AND COALESCE(owner_id, '') = $2
	`, string(ownerType), ownerID); err != nil {
		return nil, 0, fmt.Errorf("count payouts: %w", err)
	}

	var out []Payout
	if err := r.db.SelectContext(ctx, &out, `
		SELECT `+payoutColumns+` FROM payout_requests
		WHERE owner_type = $1 AND COALESCE(owner_id, '') = $2
		ORDER BY requested_at DESC
		LIMIT $3 OFFSET $4
	`, string(ownerType), ownerID, p.Limit, p.Offset); err != nil {
		return nil, 0, fmt.Errorf("list payouts: %w", err)
	}
	return out, total, nil
}

func (r *Repository) ListByStatus(ctx context.Context, status Status, p ledger.Pagination) ([]Payout, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	p = p.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM payout_requests WHERE status = $1`, string(status)); err != nil {
		return nil, 0, fmt.Errorf("count payouts: %w", err)
	}

	var out []Payout
	if err := r.db.SelectContext(ctx, &out, `
		SELECT `+payoutColumns+` FROM payout_requests
		WHERE status = $1
		ORDER BY requested_at
		LIMIT $2 OFFSET $3
	`, string(status), p.Limit, p.Offset); err != nil {
		return nil, 0, fmt.Errorf("list payouts: %w", err)
	}
	return out, total, nil
}

// pgTx adds payout rows to a wallet transaction.
type pgTx struct {
	*wallet.PgTx
}

func (t *pgTx) Insert(ctx context.Context, p *Payout) error {
	return t.Raw().QueryRowxContext(ctx, `
		INSERT INTO payout_requests (id, wallet_id, owner_type, owner_id, amount_minor, currency,
			status, destination, ledger_entry_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING requested_at
	`, p.ID, p.WalletID, string(p.OwnerType), p.OwnerID, p.AmountMinor, p.Currency,
		string(p.Status), p.Destination, p.LedgerEntryID).Scan(&p.RequestedAt)
}

func (t *pgTx) Lock(ctx context.Context, id uuid.UUID) (*Payout, error) {
	var p Payout
	err := t.Raw().GetContext(ctx, &p,
		`SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPayoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock payout: %w", err)
	}
	return &p, nil
}

func (t *pgTx) Update(ctx context.Context, p *Payout) error {
	_, err := t.Raw().ExecContext(ctx, `
		UPDATE payout_requests
		SET status = $2, external_transfer_id = $3, failure_reason = $4, resolved_at = $5
		WHERE id = $1
	`, p.ID, string(p.Status), p.ExternalTransferID, p.FailureReason, p.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	return nil
}
