package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments shared across the engine.
// Store-local latency histograms live next to their stores.
type Metrics struct {
	UnitsAdded           prometheus.Counter
	UnitsReserved        prometheus.Counter
	UnitsExpired         prometheus.Counter
	RequestsCreated      prometheus.Counter
	RequestsAssigned     prometheus.Counter
	AllocationDuration   prometheus.Histogram
	AllocationRetries    prometheus.Counter
	ConfirmationOutcomes *prometheus.CounterVec
	SweepDuration        prometheus.Histogram
}

// New creates and registers all engine metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		UnitsAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifebank_units_added_total",
			Help: "Total number of blood units taken into inventory",
		}),
		UnitsReserved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifebank_units_reserved_total",
			Help: "Total number of blood units reserved by the allocator",
		}),
		UnitsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifebank_units_expired_total",
			Help: "Total number of blood units expired by the sweeper",
		}),
		RequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifebank_requests_created_total",
			Help: "Total number of need requests created",
		}),
		RequestsAssigned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifebank_requests_assigned_total",
			Help: "Total number of need requests moved to assigned",
		}),
		AllocationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifebank_allocation_duration_seconds",
			Help:    "Latency of allocation attempts including retries",
			Buckets: prometheus.DefBuckets,
		}),
		AllocationRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifebank_allocation_retries_total",
			Help: "Allocation attempts that lost a reservation race and retried",
		}),
		ConfirmationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lifebank_match_confirmations_total",
			Help: "Match confirmation calls by outcome",
		}, []string{"outcome"}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifebank_sweep_duration_seconds",
			Help:    "Duration of full expiration sweeper passes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// Counter helpers nil-check so tests can run components without metrics.

func (m *Metrics) IncUnitsAdded() {
	if m != nil {
		m.UnitsAdded.Inc()
	}
}

func (m *Metrics) AddUnitsReserved(n int) {
	if m != nil {
		m.UnitsReserved.Add(float64(n))
	}
}

func (m *Metrics) AddUnitsExpired(n int) {
	if m != nil {
		m.UnitsExpired.Add(float64(n))
	}
}

func (m *Metrics) IncRequestsCreated() {
	if m != nil {
		m.RequestsCreated.Inc()
	}
}

func (m *Metrics) IncRequestsAssigned() {
	if m != nil {
		m.RequestsAssigned.Inc()
	}
}

func (m *Metrics) IncAllocationRetries() {
	if m != nil {
		m.AllocationRetries.Inc()
	}
}

// ObserveAllocation records the total allocation duration.
func (m *Metrics) ObserveAllocation(d time.Duration) {
	if m != nil {
		m.AllocationDuration.Observe(d.Seconds())
	}
}

// ObserveSweep records the duration of one sweeper pass.
func (m *Metrics) ObserveSweep(d time.Duration) {
	if m != nil {
		m.SweepDuration.Observe(d.Seconds())
	}
}

// CountConfirmation records a confirmation outcome label.
func (m *Metrics) CountConfirmation(outcome string) {
	if m != nil {
		m.ConfirmationOutcomes.WithLabelValues(outcome).Inc()
	}
}
