package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// schema is applied in order on start-up. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
		id UUID PRIMARY KEY,
		owner_type TEXT NOT NULL CHECK (owner_type IN ('admin', 'doctor', 'user')),
		owner_id TEXT,
		currency CHAR(3) NOT NULL,
		balance_minor BIGINT NOT NULL DEFAULT 0 CHECK (balance_minor >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS wallets_owner_currency_uq
		ON wallets (owner_type, (COALESCE(owner_id, '')), currency)`,

	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id UUID PRIMARY KEY,
		wallet_id UUID NOT NULL REFERENCES wallets(id),
		direction TEXT NOT NULL CHECK (direction IN ('credit', 'debit')),
		amount_minor BIGINT NOT NULL CHECK (amount_minor > 0),
		currency CHAR(3) NOT NULL,
		payment_intent_id TEXT NOT NULL,
		booking_id TEXT,
		type TEXT NOT NULL CHECK (type IN ('commission', 'earnings', 'refund', 'reversal', 'payout')),
		idempotency_key TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE ledger_entries ADD COLUMN IF NOT EXISTS refund_to TEXT`,
	`ALTER TABLE ledger_entries ADD COLUMN IF NOT EXISTS refund_minor BIGINT`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ledger_entries_idempotency_key_uq ON ledger_entries (idempotency_key)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_wallet_created_idx ON ledger_entries (wallet_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_payment_intent_idx ON ledger_entries (payment_intent_id)`,

	`CREATE TABLE IF NOT EXISTS payout_requests (
		id UUID PRIMARY KEY,
		wallet_id UUID NOT NULL REFERENCES wallets(id),
		owner_type TEXT NOT NULL,
		owner_id TEXT,
		amount_minor BIGINT NOT NULL CHECK (amount_minor > 0),
		currency CHAR(3) NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'paid', 'failed')),
		destination TEXT NOT NULL DEFAULT '',
		ledger_entry_id UUID NOT NULL REFERENCES ledger_entries(id),
		external_transfer_id TEXT,
		failure_reason TEXT,
		requested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		resolved_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS payout_requests_owner_idx ON payout_requests (owner_type, owner_id, requested_at DESC)`,
	`CREATE INDEX IF NOT EXISTS payout_requests_status_idx ON payout_requests (status, requested_at)`,

	`CREATE TABLE IF NOT EXISTS wallet_history (
		id UUID PRIMARY KEY,
		ledger_entry_id UUID NOT NULL REFERENCES ledger_entries(id),
		wallet_id UUID NOT NULL REFERENCES wallets(id),
		owner_type TEXT NOT NULL,
		owner_id TEXT,
		currency CHAR(3) NOT NULL,
		amount_minor BIGINT NOT NULL,
		direction TEXT NOT NULL,
		type TEXT NOT NULL,
		reference_id TEXT NOT NULL,
		booking_id TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS wallet_history_ledger_entry_uq ON wallet_history (ledger_entry_id)`,
	`CREATE INDEX IF NOT EXISTS wallet_history_owner_idx ON wallet_history (owner_type, owner_id, created_at DESC)`,
}

// Bootstrap creates the ledger schema if it is missing.
func Bootstrap(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	log.Info().Int("statements", len(schema)).Msg("Database schema ready")
	return nil
}
