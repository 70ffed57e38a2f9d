// Package reconcile runs the periodic ledger consistency check.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/pkg/metrics"
)

const (
	runTimeout = 30 * time.Second
	driftLimit = 500
)

type DriftLister interface {
	ListDrift(ctx context.Context, limit int) ([]wallet.Reconciliation, error)
}

type HistoryRebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// Report summarizes one pass.
type Report struct {
	Drifted   []wallet.Reconciliation
	Projected int
}

// Worker compares balances against the ledger and backfills wallet history
type Worker struct {
	wallets  DriftLister
	history  HistoryRebuilder
	interval time.Duration
	stopCh   chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewWorker creates a new reconciliation worker
func NewWorker(wallets DriftLister, history HistoryRebuilder, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Worker{
		wallets:  wallets,
		history:  history,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background worker. It does nothing after the first call
// or once the worker is stopped.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	log.Info().Dur("interval", w.interval).Msg("Starting reconciliation worker...")
	go w.loop()
}

// Stop signals the loop and waits for the current pass to finish. It returns
// immediately for a worker that was never started.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		log.Info().Msg("Stopping reconciliation worker...")
		close(w.stopCh)
		if !w.started {
			close(w.done)
		}
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Worker) loop() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick()

	for {
		select {
		case <-ticker.C:
			w.tick()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	_, _ = w.RunOnce(ctx)
}

// RunOnce performs a single pass. A drift scan failure skips the history
// rebuild and leaves the gauge untouched.
func (w *Worker) RunOnce(ctx context.Context) (*Report, error) {
	log.Debug().Msg("Starting ledger reconciliation...")

	drifted, err := w.wallets.ListDrift(ctx, driftLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to scan wallets for drift")
		return nil, err
	}
	metrics.LedgerDrift.Set(float64(len(drifted)))
	for _, d := range drifted {
		log.Error().
			Str("wallet_id", d.WalletID.String()).
			Int64("balance", d.Balance).
			Int64("ledger_sum", d.LedgerSum).
			Int64("drift", d.Drift).
			Msg("wallet balance disagrees with ledger")
	}

	rep := &Report{Drifted: drifted}
	if w.history == nil {
		return rep, nil
	}
	n, err := w.history.Rebuild(ctx)
	rep.Projected = n
	if err != nil {
		log.Error().Err(err).Msg("Failed to rebuild wallet history")
		return rep, err
	}

	log.Debug().Int("drifted", len(drifted)).Int("projected", n).Msg("Finished ledger reconciliation")
	return rep, nil
}
