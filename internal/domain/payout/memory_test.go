package payout_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/payout"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/domain/wallet/wallettest"
)

// memStore keeps payout rows next to the in-memory wallet store. Payout
// changes commit only when the wallet transaction does.
type memStore struct {
	wallets *wallettest.Store

	mu         sync.Mutex
	payouts    map[uuid.UUID]payout.Payout
	failInsert error
}

func newMemStore(wallets *wallettest.Store) *memStore {
	return &memStore{wallets: wallets, payouts: map[uuid.UUID]payout.Payout{}}
}

type memTx struct {
	*wallettest.Tx
	payouts    map[uuid.UUID]payout.Payout
	failInsert error
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx payout.Tx) error) error {
	return m.wallets.WithTx(ctx, func(wtx wallet.Tx) error {
		m.mu.Lock()
		staged := make(map[uuid.UUID]payout.Payout, len(m.payouts))
		for k, v := range m.payouts {
			staged[k] = v
		}
		failInsert := m.failInsert
		m.mu.Unlock()

		if err := fn(&memTx{Tx: wtx.(*wallettest.Tx), payouts: staged, failInsert: failInsert}); err != nil {
			return err
		}

		m.mu.Lock()
		m.payouts = staged
		m.mu.Unlock()
		return nil
	})
}

func (t *memTx) Insert(ctx context.Context, p *payout.Payout) error {
	if t.failInsert != nil {
		return t.failInsert
	}
	if p.RequestedAt.IsZero() {
		p.RequestedAt = time.Now()
	}
	t.payouts[p.ID] = *p
	return nil
}

func (t *memTx) Lock(ctx context.Context, id uuid.UUID) (*payout.Payout, error) {
	p, ok := t.payouts[id]
	if !ok {
		return nil, payout.ErrPayoutNotFound
	}
	return &p, nil
}

func (t *memTx) Update(ctx context.Context, p *payout.Payout) error {
	t.payouts[p.ID] = *p
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*payout.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return nil, payout.ErrPayoutNotFound
	}
	return &p, nil
}

func (m *memStore) filter(keep func(payout.Payout) bool, pg ledger.Pagination) ([]payout.Payout, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pg = pg.Normalize()

	var all []payout.Payout
	for _, p := range m.payouts {
		if keep(p) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].RequestedAt.Before(all[j].RequestedAt) })
	total := len(all)
	if pg.Offset >= total {
		return nil, total, nil
	}
	end := pg.Offset + pg.Limit
	if end > total {
		end = total
	}
	return all[pg.Offset:end], total, nil
}

func (m *memStore) ListByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID string, pg ledger.Pagination) ([]payout.Payout, int, error) {
	return m.filter(func(p payout.Payout) bool {
		return p.OwnerType == ownerType && p.Owner() == ownerID
	}, pg)
}

func (m *memStore) ListByStatus(ctx context.Context, status payout.Status, pg ledger.Pagination) ([]payout.Payout, int, error) {
	return m.filter(func(p payout.Payout) bool { return p.Status == status }, pg)
}
