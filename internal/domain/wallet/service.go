package wallet

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/pkg/validator"
)

// NormalizeCurrency upper-cases a currency code and checks it against ISO 4217.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := validator.ValidateVar(code, "iso4217"); err != nil {
		return "", ErrInvalidCurrency
	}
	return code, nil
}

// ISO 4217 exponents that differ from the common two decimal places.
var minorUnits = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "UYI": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
	"CLF": 4, "UYW": 4,
}

// MinorUnits returns how many decimal places the currency's minor unit has.
func MinorUnits(code string) int32 {
	if exp, ok := minorUnits[strings.ToUpper(code)]; ok {
		return exp
	}
	return 2
}

// Service is the wallet aggregate. Every balance change goes through apply so
// that the ledger row and the balance update share one transaction.
type Service struct {
	store Store
	cache *BalanceCache
}

func NewService(store Store, cache *BalanceCache) *Service {
	return &Service{store: store, cache: cache}
}

// WithTx exposes the store transaction so that multi-wallet operations can
// compose CreditTx and DebitTx atomically.
func (s *Service) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.store.WithTx(ctx, fn)
}

func (s *Service) EnsureWallet(ctx context.Context, ownerType OwnerType, ownerID, currency string) (*Wallet, error) {
	if !ownerType.Valid() {
		return nil, ErrInvalidOwner
	}
	if ownerType != OwnerAdmin && ownerID == "" {
		return nil, ErrInvalidOwner
	}
	cur, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	return s.store.Ensure(ctx, ownerType, ownerID, cur)
}

func (s *Service) Get(ctx context.Context, walletID uuid.UUID) (*Wallet, error) {
	return s.store.GetByID(ctx, walletID)
}

func (s *Service) FindByOwner(ctx context.Context, ownerType OwnerType, ownerID, currency string) (*Wallet, error) {
	cur, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	return s.store.GetByOwner(ctx, ownerType, ownerID, cur)
}

func (s *Service) ListByOwner(ctx context.Context, ownerType OwnerType, ownerID string) ([]Wallet, error) {
	return s.store.ListByOwner(ctx, ownerType, ownerID)
}

// Credit posts entry as a credit of amount in its own transaction.
// A replay of the same key returns ledger.ErrDuplicateEntry and changes nothing.
func (s *Service) Credit(ctx context.Context, walletID uuid.UUID, amount int64, entry *ledger.Entry) error {
	err := s.store.WithTx(ctx, func(tx Tx) error {
		return s.CreditTx(ctx, tx, walletID, amount, entry)
	})
	if err != nil {
		return err
	}
	s.Invalidate(ctx, walletID)
	return nil
}

// Debit posts entry as a debit of amount in its own transaction.
func (s *Service) Debit(ctx context.Context, walletID uuid.UUID, amount int64, entry *ledger.Entry) error {
	err := s.store.WithTx(ctx, func(tx Tx) error {
		return s.DebitTx(ctx, tx, walletID, amount, entry)
	})
	if err != nil {
		return err
	}
	s.Invalidate(ctx, walletID)
	return nil
}

// CreditTx credits within the caller's transaction. The caller commits and
// invalidates the cache.
func (s *Service) CreditTx(ctx context.Context, tx Tx, walletID uuid.UUID, amount int64, entry *ledger.Entry) error {
	return s.apply(ctx, tx, walletID, amount, ledger.DirectionCredit, entry)
}

// DebitTx debits within the caller's transaction.
func (s *Service) DebitTx(ctx context.Context, tx Tx, walletID uuid.UUID, amount int64, entry *ledger.Entry) error {
	return s.apply(ctx, tx, walletID, amount, ledger.DirectionDebit, entry)
}

func (s *Service) apply(ctx context.Context, tx Tx, walletID uuid.UUID, amount int64, dir ledger.Direction, entry *ledger.Entry) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if entry == nil || entry.IdempotencyKey == "" || entry.PaymentIntentID == "" {
		return ErrInvalidEntry
	}

	w, err := tx.LockWallet(ctx, walletID)
	if err != nil {
		return err
	}

	if entry.Currency == "" {
		entry.Currency = w.Currency
	}
	if !strings.EqualFold(entry.Currency, w.Currency) {
		return ErrCurrencyMismatch
	}
	entry.Currency = w.Currency
	entry.WalletID = walletID
	entry.Direction = dir
	entry.AmountMinor = amount

	existing, err := tx.EntryByKey(ctx, entry.IdempotencyKey)
	if err != nil {
		return err
	}
	if existing != nil {
		if !existing.SameEffect(entry) {
			return ledger.ErrKeyConflict
		}
		*entry = *existing
		return ledger.ErrDuplicateEntry
	}

	next := w.BalanceMinor + entry.Signed()
	if next < 0 {
		return ErrInsufficientFunds
	}

	if err := tx.InsertEntry(ctx, entry); err != nil {
		return err
	}
	if err := tx.SetBalance(ctx, walletID, next); err != nil {
		return err
	}

	log.Debug().
		Str("wallet_id", walletID.String()).
		Str("direction", string(dir)).
		Str("type", string(entry.Type)).
		Int64("amount", amount).
		Int64("balance", next).
		Str("idempotency_key", entry.IdempotencyKey).
		Msg("ledger entry posted")
	return nil
}

// GetBalance returns the materialized balance, served from cache when possible.
func (s *Service) GetBalance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	if v, ok := s.cache.Get(ctx, walletID); ok {
		return v, nil
	}
	gen := s.cache.Generation(ctx, walletID)
	w, err := s.store.GetByID(ctx, walletID)
	if err != nil {
		return 0, err
	}
	s.cache.Set(ctx, walletID, w.BalanceMinor, gen)
	return w.BalanceMinor, nil
}

// Reconcile re-sums the wallet's ledger and compares it with the balance.
func (s *Service) Reconcile(ctx context.Context, walletID uuid.UUID) (*Reconciliation, error) {
	w, err := s.store.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	sum, err := s.store.LedgerSum(ctx, walletID)
	if err != nil {
		return nil, err
	}
	rec := newReconciliation(walletID, w.BalanceMinor, sum)
	if !rec.Consistent {
		log.Error().
			Str("wallet_id", walletID.String()).
			Int64("balance", rec.Balance).
			Int64("ledger_sum", rec.LedgerSum).
			Msg("wallet balance drift detected")
	}
	return rec, nil
}

// ListDrift reports wallets whose balance disagrees with the ledger.
func (s *Service) ListDrift(ctx context.Context, limit int) ([]Reconciliation, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.ListDrift(ctx, limit)
}

func (s *Service) Invalidate(ctx context.Context, ids ...uuid.UUID) {
	s.cache.Invalidate(ctx, ids...)
}

// IsDuplicate reports whether err means the entry was already posted.
func IsDuplicate(err error) bool {
	return errors.Is(err, ledger.ErrDuplicateEntry)
}

// LockAll locks the given wallets in ascending id order, skipping duplicates
// and nil ids, so that concurrent multi-wallet transactions cannot deadlock.
func LockAll(ctx context.Context, tx Tx, ids ...uuid.UUID) error {
	ordered := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})
	for _, id := range ordered {
		if _, err := tx.LockWallet(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
