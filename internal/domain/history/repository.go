package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
)

const queryTimeout = 5 * time.Second

// Repository stores history rows in Postgres.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Insert adds records, skipping entries that were already projected.
func (r *Repository) Insert(ctx context.Context, records ...*Record) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	inserted := 0
	for _, rec := range records {
		res, err := r.db.NamedExecContext(ctx, `
			INSERT INTO wallet_history (id, ledger_entry_id, wallet_id, owner_type, owner_id, currency,
				amount_minor, direction, type, reference_id, booking_id, created_at)
			VALUES (:id, :ledger_entry_id, :wallet_id, :owner_type, :owner_id, :currency,
				:amount_minor, :direction, :type, :reference_id, :booking_id, :created_at)
			ON CONFLICT (ledger_entry_id) DO NOTHING
		`, rec)
		if err != nil {
			return inserted, fmt.Errorf("insert history: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

// Missing returns projectable ledger entries with no history row yet.
func (r *Repository) Missing(ctx context.Context, limit int) ([]ledger.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out []ledger.Entry
	err := r.db.SelectContext(ctx, &out, `
		SELECT e.id, e.wallet_id, e.direction, e.amount_minor, e.currency, e.payment_intent_id,
			e.booking_id, e.type, e.idempotency_key, e.created_at
		FROM ledger_entries e
		LEFT JOIN wallet_history h ON h.ledger_entry_id = e.id
		WHERE h.id IS NULL
		  AND ((e.type = 'reversal' AND e.direction = 'debit') OR (e.type = 'refund' AND e.direction = 'credit'))
		ORDER BY e.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprojected entries: %w", err)
	}
	return out, nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID string, p ledger.Pagination) ([]Record, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	p = p.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM wallet_history WHERE owner_type = $1 AND COALESCE(owner_id, '') = $2
	`, string(ownerType), ownerID); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	var out []Record
	if err := r.db.SelectContext(ctx, &out, `
		SELECT id, ledger_entry_id, wallet_id, owner_type, owner_id, currency, amount_minor,
			direction, type, reference_id, booking_id, created_at
		FROM wallet_history
		WHERE owner_type = $1 AND COALESCE(owner_id, '') = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, string(ownerType), ownerID, p.Limit, p.Offset); err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	return out, total, nil
}
