package history_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/domain/history"
	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/refund"
	"github.com/petcare/petcare-api/internal/domain/settlement"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/domain/wallet/wallettest"
)

// memStore derives Missing from the in-memory ledger.
type memStore struct {
	ledger *wallettest.Store

	mu      sync.Mutex
	records map[uuid.UUID]history.Record
}

func newMemStore(l *wallettest.Store) *memStore {
	return &memStore{ledger: l, records: map[uuid.UUID]history.Record{}}
}

func (m *memStore) Insert(ctx context.Context, records ...*history.Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range records {
		if _, ok := m.records[r.LedgerEntryID]; ok {
			continue
		}
		m.records[r.LedgerEntryID] = *r
		n++
	}
	return n, nil
}

func (m *memStore) Missing(ctx context.Context, limit int) ([]ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Entry
	for _, e := range m.ledger.AllEntries() {
		if _, done := m.records[e.ID]; done {
			continue
		}
		if _, ok := history.KindFor(&e); ok {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) ListByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID string, p ledger.Pagination) ([]history.Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []history.Record
	for _, r := range m.records {
		owner := ""
		if r.OwnerID != nil {
			owner = *r.OwnerID
		}
		if r.OwnerType == ownerType && owner == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func TestKindFor(t *testing.T) {
	tests := []struct {
		typ  ledger.Type
		dir  ledger.Direction
		want history.Kind
		ok   bool
	}{
		{ledger.TypeReversal, ledger.DirectionDebit, history.KindCancelDeduction, true},
		{ledger.TypeRefund, ledger.DirectionCredit, history.KindCancelRefund, true},
		{ledger.TypeReversal, ledger.DirectionCredit, "", false},
		{ledger.TypeEarnings, ledger.DirectionCredit, "", false},
		{ledger.TypeCommission, ledger.DirectionCredit, "", false},
		{ledger.TypePayout, ledger.DirectionDebit, "", false},
	}
	for _, tt := range tests {
		got, ok := history.KindFor(&ledger.Entry{Type: tt.typ, Direction: tt.dir})
		if got != tt.want || ok != tt.ok {
			t.Fatalf("%s/%s: expected (%q,%v), got (%q,%v)", tt.typ, tt.dir, tt.want, tt.ok, got, ok)
		}
	}
}

type world struct {
	ledger  *wallettest.Store
	store   *memStore
	history *history.Service
	engine  *settlement.Engine
	refunds *refund.Service
	doctor  *wallet.Wallet
	payer   *wallet.Wallet
}

func newWorld(t *testing.T, projectOnReverse bool) *world {
	t.Helper()
	l := wallettest.New()
	wallets := wallet.NewService(l, nil)
	store := newMemStore(l)
	hist := history.NewService(store, wallets)

	var projector refund.Projector
	if projectOnReverse {
		projector = hist
	}
	w := &world{
		ledger:  l,
		store:   store,
		history: hist,
		engine:  settlement.NewEngine(wallets),
		refunds: refund.NewService(wallets, nil, projector),
		doctor:  l.Seed(wallet.OwnerDoctor, "doc_1", "USD", 0),
		payer:   l.Seed(wallet.OwnerUser, "usr_1", "USD", 0),
	}
	platform := l.Seed(wallet.OwnerAdmin, "", "USD", 0)

	ctx := context.Background()
	if _, err := w.engine.Settle(ctx, settlement.Capture{
		PaymentIntentID: "pi_1", BookingID: "bk_1", AmountMinor: 10000, Currency: "USD",
		DoctorWalletID: w.doctor.ID, PlatformWalletID: platform.ID, FeeBps: 1000,
	}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if _, err := w.refunds.Reverse(ctx, refund.Cancellation{
		PaymentIntentID: "pi_1", RefundTo: refund.TargetWallet, PayerWalletID: w.payer.ID,
	}); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	return w
}

func TestReverseProjectsHistory(t *testing.T) {
	w := newWorld(t, true)
	ctx := context.Background()

	doctorRows, total, err := w.history.ListByOwner(ctx, wallet.OwnerDoctor, "doc_1", ledger.Pagination{})
	if err != nil || total != 1 {
		t.Fatalf("expected 1 doctor row, got %d (err %v)", total, err)
	}
	d := doctorRows[0]
	if d.Type != history.KindCancelDeduction || d.AmountMinor != 9000 || d.ReferenceID != "pi_1" ||
		d.BookingID == nil || *d.BookingID != "bk_1" {
		t.Fatalf("unexpected doctor row %+v", d)
	}

	payerRows, _, _ := w.history.ListByOwner(ctx, wallet.OwnerUser, "usr_1", ledger.Pagination{})
	if len(payerRows) != 1 || payerRows[0].Type != history.KindCancelRefund || payerRows[0].AmountMinor != 10000 {
		t.Fatalf("unexpected payer rows %+v", payerRows)
	}

	n, err := w.history.Rebuild(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected nothing to rebuild, got %d (err %v)", n, err)
	}
}

func TestRebuildBackfillsMissingRows(t *testing.T) {
	w := newWorld(t, false)
	ctx := context.Background()

	if _, total, _ := w.history.ListByOwner(ctx, wallet.OwnerDoctor, "doc_1", ledger.Pagination{}); total != 0 {
		t.Fatalf("expected no rows before rebuild, got %d", total)
	}
	n, err := w.history.Rebuild(ctx)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
	if n, _ := w.history.Rebuild(ctx); n != 0 {
		t.Fatalf("second rebuild wrote %d rows", n)
	}
}

func TestProjectTwiceIsNoop(t *testing.T) {
	w := newWorld(t, true)
	ctx := context.Background()

	entries := w.ledger.EntriesByPaymentIntent("pi_1")
	ptrs := make([]*ledger.Entry, len(entries))
	for i := range entries {
		ptrs[i] = &entries[i]
	}
	if err := w.history.Project(ctx, ptrs...); err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(w.store.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(w.store.records))
	}
}
