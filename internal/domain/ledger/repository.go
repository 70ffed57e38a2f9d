package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

const entryColumns = `id, wallet_id, direction, amount_minor, currency, payment_intent_id,
	booking_id, type, idempotency_key, created_at, refund_to, refund_minor`

// Insert appends an entry inside the caller's transaction. A unique violation
// on the idempotency key is reported as ErrDuplicateEntry.
func Insert(ctx context.Context, tx sqlx.ExtContext, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := sqlx.GetContext(ctx, tx, &e.CreatedAt, `
		INSERT INTO ledger_entries (id, wallet_id, direction, amount_minor, currency,
			payment_intent_id, booking_id, type, idempotency_key, refund_to, refund_minor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, e.ID, e.WalletID, string(e.Direction), e.AmountMinor, e.Currency,
		e.PaymentIntentID, e.BookingID, string(e.Type), e.IdempotencyKey, e.RefundTo, e.RefundMinor)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByKey loads an entry by idempotency key. It returns nil, nil when the key
// has not been posted.
func GetByKey(ctx context.Context, q sqlx.QueryerContext, key string) (*Entry, error) {
	var e Entry
	err := sqlx.GetContext(ctx, q, &e, `SELECT `+entryColumns+` FROM ledger_entries WHERE idempotency_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry by key: %w", err)
	}
	return &e, nil
}

// Repository serves read queries over the ledger.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByKey(ctx context.Context, key string) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return GetByKey(ctx, r.db, key)
}

// ListByWallet returns a page of entries, newest first, and the total count.
func (r *Repository) ListByWallet(ctx context.Context, walletID uuid.UUID, p Pagination) ([]Entry, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	p = p.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM ledger_entries WHERE wallet_id = $1`, walletID); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	entries := []Entry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, walletID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, total, nil
}

// ListByPaymentIntent returns every entry posted for a payment reference.
func (r *Repository) ListByPaymentIntent(ctx context.Context, paymentIntentID string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	entries := []Entry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE payment_intent_id = $1
		ORDER BY created_at, id
	`, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries by payment intent: %w", err)
	}
	return entries, nil
}

// ListByWalletRange returns entries in [from, to), oldest first.
func (r *Repository) ListByWalletRange(ctx context.Context, walletID uuid.UUID, from, to time.Time) ([]Entry, error) {
	entries := []Entry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE wallet_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, id
	`, walletID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries by range: %w", err)
	}
	return entries, nil
}

// SumByWallet re-sums credits minus debits for a wallet.
func (r *Repository) SumByWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var sum int64
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount_minor ELSE -amount_minor END), 0)
		FROM ledger_entries
		WHERE wallet_id = $1
	`, walletID)
	if err != nil {
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}
