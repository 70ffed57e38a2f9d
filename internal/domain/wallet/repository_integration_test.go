package wallet_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/pkg/database/dbtest"
)

func TestPostgresConcurrentCredits(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	svc := wallet.NewService(wallet.NewRepository(db), nil)
	w, err := svc.EnsureWallet(ctx, wallet.OwnerDoctor, "doc_pg_1", "USD")
	if err != nil {
		t.Fatalf("ensure wallet failed: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry := ledger.NewEntry(fmt.Sprintf("pi_pg_%d", i), "", "USD", ledger.TypeEarnings)
			if err := svc.Credit(ctx, w.ID, 100, entry); err != nil {
				t.Errorf("credit %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	rec, err := svc.Reconcile(ctx, w.ID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if rec.Balance != workers*100 || !rec.Consistent {
		t.Fatalf("expected consistent balance %d, got %+v", workers*100, rec)
	}
}

func TestPostgresDuplicateKeyRejected(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	svc := wallet.NewService(wallet.NewRepository(db), nil)
	w, err := svc.EnsureWallet(ctx, wallet.OwnerDoctor, "doc_pg_2", "USD")
	if err != nil {
		t.Fatalf("ensure wallet failed: %v", err)
	}

	if err := svc.Credit(ctx, w.ID, 700, ledger.NewEntry("pi_dup", "", "USD", ledger.TypeEarnings)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	err = svc.Credit(ctx, w.ID, 700, ledger.NewEntry("pi_dup", "", "USD", ledger.TypeEarnings))
	if !errors.Is(err, ledger.ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}

	balance, err := svc.GetBalance(ctx, w.ID)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if balance != 700 {
		t.Fatalf("expected 700, got %d", balance)
	}

	err = svc.Debit(ctx, w.ID, 701, ledger.NewEntry("po_pg", "", "USD", ledger.TypePayout))
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}
