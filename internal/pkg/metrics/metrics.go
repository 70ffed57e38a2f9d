// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the posting counters.
const (
	OutcomePosted    = "posted"
	OutcomeDuplicate = "duplicate"
	OutcomeStale     = "stale"
	OutcomeFailed    = "failed"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petcare_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "petcare_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "route"})

	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petcare_settlements_total",
		Help: "Settlement attempts by outcome",
	}, []string{"outcome"})

	SettledMinor = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petcare_settled_minor_units_total",
		Help: "Minor units credited by settlements, split by leg",
	}, []string{"currency", "leg"})

	Reversals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petcare_reversals_total",
		Help: "Reversal attempts by outcome",
	}, []string{"outcome"})

	Payouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petcare_payout_transitions_total",
		Help: "Payout state transitions",
	}, []string{"status"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petcare_webhook_events_total",
		Help: "Payment provider webhook events by type and result",
	}, []string{"type", "result"})

	LedgerDrift = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "petcare_wallets_with_drift",
		Help: "Wallets whose balance disagrees with the ledger at the last reconciliation",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
