package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/petcare/petcare-api/internal/domain/reconcile"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/domain/wallet/wallettest"
	"github.com/petcare/petcare-api/internal/pkg/metrics"
)

type rebuildStub struct {
	calls int
	n     int
	err   error
}

func (r *rebuildStub) Rebuild(ctx context.Context) (int, error) {
	r.calls++
	return r.n, r.err
}

type failingLister struct{}

func (failingLister) ListDrift(ctx context.Context, limit int) ([]wallet.Reconciliation, error) {
	return nil, errors.New("db down")
}

func TestRunOnceReportsDrift(t *testing.T) {
	store := wallettest.New()
	wallets := wallet.NewService(store, nil)
	ok := store.Seed(wallet.OwnerDoctor, "doc-ok", "USD", 500)
	bad := store.Seed(wallet.OwnerDoctor, "doc-bad", "USD", 500)
	store.SetBalanceUnsafe(bad.ID, 700)

	history := &rebuildStub{n: 3}
	w := reconcile.NewWorker(wallets, history, time.Minute)

	rep, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(rep.Drifted) != 1 || rep.Drifted[0].WalletID != bad.ID || rep.Drifted[0].Drift != 200 {
		t.Fatalf("unexpected drift report %+v (ok wallet %s)", rep.Drifted, ok.ID)
	}
	if rep.Projected != 3 || history.calls != 1 {
		t.Fatalf("expected one rebuild of 3 records, got calls=%d projected=%d", history.calls, rep.Projected)
	}
	if got := testutil.ToFloat64(metrics.LedgerDrift); got != 1 {
		t.Fatalf("expected drift gauge 1, got %v", got)
	}

	store.SetBalanceUnsafe(bad.ID, 500)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if got := testutil.ToFloat64(metrics.LedgerDrift); got != 0 {
		t.Fatalf("expected drift gauge 0, got %v", got)
	}
}

func TestRunOnceErrors(t *testing.T) {
	history := &rebuildStub{}
	w := reconcile.NewWorker(failingLister{}, history, time.Minute)
	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Fatal("expected drift scan error")
	}
	if history.calls != 0 {
		t.Fatal("history rebuild should be skipped when the scan fails")
	}

	store := wallettest.New()
	history.err = errors.New("projection failed")
	w = reconcile.NewWorker(wallet.NewService(store, nil), history, time.Minute)
	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Fatal("expected rebuild error")
	}
}

func TestStartStop(t *testing.T) {
	history := &rebuildStub{}
	w := reconcile.NewWorker(wallet.NewService(wallettest.New(), nil), history, time.Hour)
	w.Start()
	w.Stop()
	w.Stop()
	if history.calls != 1 {
		t.Fatalf("expected the startup pass to run once, got %d", history.calls)
	}
}

func TestStopWithoutStart(t *testing.T) {
	w := reconcile.NewWorker(wallettest.New(), nil, time.Hour)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a worker that was never started")
	}

	// Start after Stop must not launch the loop.
	w.Start()
	w.Stop()
}
