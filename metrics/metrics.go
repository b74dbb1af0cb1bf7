package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the engine. It implements
// hours.Observer.
type Metrics struct {
	ComputationDuration *prometheus.HistogramVec // Duration of engine operations
	ComputationErrors   *prometheus.CounterVec   // Failed engine operations
	CarryoverLookups    *prometheus.CounterVec   // outcome: hit, stale, computed, restored
	FinalizeOutcomes    *prometheus.CounterVec   // outcome: created, conflict, error
	CarryoverRefreshed  prometheus.Counter       // Rows recomputed by the background refresher
}

// NewMetrics creates a Metrics instance registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ComputationDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hours_computation_duration_seconds",
			Help:    "Duration of engine operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}), // operation: compute_balance, compute_balance_all, carryover, finalize
		ComputationErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hours_computation_errors_total",
			Help: "Total number of failed engine operations",
		}, []string{"operation"}),
		CarryoverLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hours_carryover_lookups_total",
			Help: "Carryover lookups by outcome",
		}, []string{"outcome"}),
		FinalizeOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hours_billing_period_finalize_total",
			Help: "Billing period finalization attempts by outcome",
		}, []string{"outcome"}),
		CarryoverRefreshed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hours_carryover_refreshed_total",
			Help: "Total number of carryover rows recomputed in the background",
		}),
	}
}

func (m *Metrics) ObserveComputation(op string, d time.Duration, err error) {
	m.ComputationDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.ComputationErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) ObserveCarryover(outcome string) {
	m.CarryoverLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFinalize(outcome string) {
	m.FinalizeOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveRefresh records rows recomputed by one refresher pass.
func (m *Metrics) ObserveRefresh(rows int) {
	m.CarryoverRefreshed.Add(float64(rows))
}
