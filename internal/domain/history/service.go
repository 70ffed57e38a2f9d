package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
)

const rebuildBatch = 500

// Store is the persistence used by the projector.
type Store interface {
	Insert(ctx context.Context, records ...*Record) (int, error)
	Missing(ctx context.Context, limit int) ([]ledger.Entry, error)
	ListByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID string, p ledger.Pagination) ([]Record, int, error)
}

// WalletReader resolves entry owners.
type WalletReader interface {
	Get(ctx context.Context, walletID uuid.UUID) (*wallet.Wallet, error)
}

// Service projects ledger entries into the wallet history read model.
type Service struct {
	store   Store
	wallets WalletReader
}

func NewService(store Store, wallets WalletReader) *Service {
	return &Service{store: store, wallets: wallets}
}

// Project writes history rows for the projectable entries among entries.
// Projecting an entry twice is a no-op.
func (s *Service) Project(ctx context.Context, entries ...*ledger.Entry) error {
	_, err := s.project(ctx, entries)
	return err
}

func (s *Service) project(ctx context.Context, entries []*ledger.Entry) (int, error) {
	owners := map[uuid.UUID]*wallet.Wallet{}
	var records []*Record
	for _, e := range entries {
		if _, ok := KindFor(e); !ok {
			continue
		}
		w, ok := owners[e.WalletID]
		if !ok {
			var err error
			w, err = s.wallets.Get(ctx, e.WalletID)
			if err != nil {
				return 0, fmt.Errorf("resolve owner of %s: %w", e.WalletID, err)
			}
			owners[e.WalletID] = w
		}
		rec, _ := FromEntry(e, w)
		records = append(records, rec)
	}
	if len(records) == 0 {
		return 0, nil
	}
	return s.store.Insert(ctx, records...)
}

// Rebuild projects every ledger entry that has no history row yet and
// returns the number of rows written.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	total := 0
	for {
		missing, err := s.store.Missing(ctx, rebuildBatch)
		if err != nil {
			return total, err
		}
		if len(missing) == 0 {
			break
		}
		batch := make([]*ledger.Entry, len(missing))
		for i := range missing {
			batch[i] = &missing[i]
		}
		n, err := s.project(ctx, batch)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 || len(missing) < rebuildBatch {
			break
		}
	}
	if total > 0 {
		log.Info().Int("records", total).Msg("wallet history rebuilt")
	}
	return total, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID string, p ledger.Pagination) ([]Record, int, error) {
	return s.store.ListByOwner(ctx, ownerType, ownerID, p)
}
