package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/petcare/petcare-api/internal/domain/ledger"
)

const queryTimeout = 3 * time.Second

const walletColumns = `id, owner_type, owner_id, currency, balance_minor, created_at, updated_at`

// Repository is the Postgres implementation of Store.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(NewTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w Wallet
	err := r.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

func (r *Repository) GetByOwner(ctx context.Context, ownerType OwnerType, ownerID, currency string) (*Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE owner_type = $1 AND COALESCE(owner_id, '') = $2 AND currency = $3
	`, string(ownerType), ownerID, currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet by owner: %w", err)
	}
	return &w, nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerType OwnerType, ownerID string) ([]Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	wallets := []Wallet{}
	err := r.db.SelectContext(ctx, &wallets, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE owner_type = $1 AND COALESCE(owner_id, '') = $2
		ORDER BY currency
	`, string(ownerType), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list wallets by owner: %w", err)
	}
	return wallets, nil
}

// Ensure creates the owner's wallet for a currency if it does not exist yet.
func (r *Repository) Ensure(ctx context.Context, ownerType OwnerType, ownerID, currency string) (*Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var owner interface{}
	if ownerID != "" {
		owner = ownerID
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (id, owner_type, owner_id, currency, balance_minor)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT DO NOTHING
	`, uuid.New(), string(ownerType), owner, currency); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	return r.GetByOwner(ctx, ownerType, ownerID, currency)
}

func (r *Repository) LedgerSum(ctx context.Context, id uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var sum int64
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount_minor ELSE -amount_minor END), 0)
		FROM ledger_entries
		WHERE wallet_id = $1
	`, id)
	if err != nil {
		return 0, fmt.Errorf("sum wallet ledger: %w", err)
	}
	return sum, nil
}

// ListDrift returns wallets whose materialized balance disagrees with the ledger.
func (r *Repository) ListDrift(ctx context.Context, limit int) ([]Reconciliation, error) {
	rows := []Reconciliation{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT w.id AS wallet_id, w.balance_minor, COALESCE(s.total, 0) AS ledger_sum
		FROM wallets w
		LEFT JOIN (
			SELECT wallet_id,
				SUM(CASE WHEN direction = 'credit' THEN amount_minor ELSE -amount_minor END) AS total
			FROM ledger_entries
			GROUP BY wallet_id
		) s ON s.wallet_id = w.id
		WHERE w.balance_minor <> COALESCE(s.total, 0)
		ORDER BY w.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list wallet drift: %w", err)
	}
	for i := range rows {
		rows[i] = *newReconciliation(rows[i].WalletID, rows[i].Balance, rows[i].LedgerSum)
	}
	return rows, nil
}

// PgTx adapts a *sqlx.Tx to Tx. Other domains embed it to share the
// transaction with their own row operations.
type PgTx struct {
	tx *sqlx.Tx
}

func NewTx(tx *sqlx.Tx) *PgTx {
	return &PgTx{tx: tx}
}

// Raw exposes the underlying transaction.
func (t *PgTx) Raw() *sqlx.Tx {
	return t.tx
}

func (t *PgTx) LockWallet(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := t.tx.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return &w, nil
}

func (t *PgTx) SetBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE wallets SET balance_minor = $1, updated_at = now() WHERE id = $2`, balance, id)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	return nil
}

func (t *PgTx) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	return ledger.Insert(ctx, t.tx, e)
}

func (t *PgTx) EntryByKey(ctx context.Context, key string) (*ledger.Entry, error) {
	return ledger.GetByKey(ctx, t.tx, key)
}
