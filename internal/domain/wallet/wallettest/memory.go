// Package wallettest provides an in-memory wallet.Store for tests.
package wallettest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
)

// Store keeps wallets and ledger entries in memory. WithTx holds an exclusive
// lock and works on a copy of the state, so a failed transaction leaves no
// trace. Non-transactional methods must not be called from inside WithTx.
type Store struct {
	mu    sync.Mutex
	state state

	failAfter int
	failErr   error
}

type state struct {
	wallets map[uuid.UUID]wallet.Wallet
	entries []ledger.Entry
	keys    map[string]int
}

func (s state) clone() state {
	c := state{
		wallets: make(map[uuid.UUID]wallet.Wallet, len(s.wallets)),
		entries: make([]ledger.Entry, len(s.entries)),
		keys:    make(map[string]int, len(s.keys)),
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	copy(c.entries, s.entries)
	for k, v := range s.keys {
		c.keys[k] = v
	}
	return c
}

func New() *Store {
	return &Store{state: state{
		wallets: map[uuid.UUID]wallet.Wallet{},
		keys:    map[string]int{},
	}}
}

// FailInsertAfter makes the (n+1)th InsertEntry of the next transaction fail
// with err.
func (s *Store) FailInsertAfter(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = n
	s.failErr = err
}

// Seed creates a wallet and, for a positive balance, a matching seed credit.
func (s *Store) Seed(ownerType wallet.OwnerType, ownerID, currency string, balance int64) *wallet.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.state.ensure(ownerType, ownerID, currency)
	if balance > 0 {
		e := ledger.Entry{
			ID:              uuid.New(),
			WalletID:        w.ID,
			Direction:       ledger.DirectionCredit,
			AmountMinor:     balance,
			Currency:        currency,
			PaymentIntentID: "seed_" + w.ID.String(),
			Type:            ledger.TypeEarnings,
			IdempotencyKey:  "seed_" + w.ID.String() + ":earnings",
			CreatedAt:       time.Now(),
		}
		s.state.keys[e.IdempotencyKey] = len(s.state.entries)
		s.state.entries = append(s.state.entries, e)
		w.BalanceMinor += balance
		s.state.wallets[w.ID] = w
	}
	return &w
}

func (st *state) ensure(ownerType wallet.OwnerType, ownerID, currency string) wallet.Wallet {
	for _, w := range st.wallets {
		if w.OwnerType == ownerType && w.Owner() == ownerID && w.Currency == currency {
			return w
		}
	}
	now := time.Now()
	w := wallet.Wallet{
		ID:        uuid.New(),
		OwnerType: ownerType,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ownerID != "" {
		id := ownerID
		w.OwnerID = &id
	}
	st.wallets[w.ID] = w
	return w
}

// Entries returns the ledger entries of a wallet in posting order.
func (s *Store) Entries(walletID uuid.UUID) []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Entry
	for _, e := range s.state.entries {
		if e.WalletID == walletID {
			out = append(out, e)
		}
	}
	return out
}

// AllEntries returns every posted entry in posting order.
func (s *Store) AllEntries() []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Entry(nil), s.state.entries...)
}

// EntriesByPaymentIntent returns the entries posted for a reference.
func (s *Store) EntriesByPaymentIntent(ref string) []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Entry
	for _, e := range s.state.entries {
		if e.PaymentIntentID == ref {
			out = append(out, e)
		}
	}
	return out
}

// Balance returns the stored balance, or -1 for an unknown wallet.
func (s *Store) Balance(walletID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.state.wallets[walletID]
	if !ok {
		return -1
	}
	return w.BalanceMinor
}

func (s *Store) WithTx(ctx context.Context, fn func(tx wallet.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	t := &Tx{st: &staged, failAfter: s.failAfter, failErr: s.failErr}
	s.failErr = nil
	s.failAfter = 0

	if err := fn(t); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.state.wallets[id]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	return &w, nil
}

func (s *Store) GetByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID, currency string) (*wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.state.wallets {
		if w.OwnerType == ownerType && w.Owner() == ownerID && w.Currency == currency {
			w := w
			return &w, nil
		}
	}
	return nil, wallet.ErrWalletNotFound
}

func (s *Store) ListByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID string) ([]wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []wallet.Wallet{}
	for _, w := range s.state.wallets {
		if w.OwnerType == ownerType && w.Owner() == ownerID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (s *Store) Ensure(ctx context.Context, ownerType wallet.OwnerType, ownerID, currency string) (*wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.state.ensure(ownerType, ownerID, currency)
	return &w, nil
}

func (s *Store) LedgerSum(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.sum(id), nil
}

func (st *state) sum(id uuid.UUID) int64 {
	var total int64
	for _, e := range st.entries {
		if e.WalletID == id {
			total += e.Signed()
		}
	}
	return total
}

func (s *Store) ListDrift(ctx context.Context, limit int) ([]wallet.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []wallet.Reconciliation{}
	for id, w := range s.state.wallets {
		if sum := s.state.sum(id); sum != w.BalanceMinor {
			out = append(out, wallet.Reconciliation{WalletID: id, Balance: w.BalanceMinor, LedgerSum: sum, Drift: w.BalanceMinor - sum})
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// SetBalanceUnsafe overwrites a balance outside of the ledger to simulate drift.
func (s *Store) SetBalanceUnsafe(id uuid.UUID, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.state.wallets[id]
	w.BalanceMinor = balance
	s.state.wallets[id] = w
}

// Tx is the staged view handed to WithTx callbacks. It is exported so other
// in-memory stores can embed it.
type Tx struct {
	st *state

	inserts   int
	failAfter int
	failErr   error
}

func (t *Tx) LockWallet(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	w, ok := t.st.wallets[id]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	return &w, nil
}

func (t *Tx) SetBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	w := t.st.wallets[id]
	w.BalanceMinor = balance
	w.UpdatedAt = time.Now()
	t.st.wallets[id] = w
	return nil
}

func (t *Tx) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	if t.failErr != nil && t.inserts >= t.failAfter {
		return t.failErr
	}
	t.inserts++
	if _, ok := t.st.keys[e.IdempotencyKey]; ok {
		return ledger.ErrDuplicateEntry
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now()
	t.st.keys[e.IdempotencyKey] = len(t.st.entries)
	t.st.entries = append(t.st.entries, *e)
	return nil
}

func (t *Tx) EntryByKey(ctx context.Context, key string) (*ledger.Entry, error) {
	i, ok := t.st.keys[key]
	if !ok {
		return nil, nil
	}
	e := t.st.entries[i]
	return &e, nil
}
