package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
)

// Metrics holds the Prometheus collectors of the ledger services.
type Metrics struct {
	// Registry owns the collectors; /metrics serves it.
	Registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	events            *prometheus.CounterVec
	installments      prometheus.Histogram
}

// NewMetrics registers every collector in a private registry so that tests
// can build as many instances as they like.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operations_total",
				Help: "Service operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_events_total",
				Help: "Domain events handed to the broker by outcome.",
			},
			[]string{"event", "outcome"},
		),
		installments: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledger_installments_per_purchase",
				Help:    "Number of installments per installment purchase.",
				Buckets: []float64{1, 2, 3, 6, 10, 12, 18, 24},
			},
		),
	}
}

// Track starts timing operation. Call the returned func with the operation's
// final error; the outcome label is derived from its kind.
func (m *Metrics) Track(operation string) func(err error) {
	start := time.Now()

	return func(err error) {
		outcome := "success"
		if err != nil {
			outcome = string(apperr.KindOf(err))
		}

		m.operations.WithLabelValues(operation, outcome).Inc()
		m.operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) IncrEvent(event, outcome string) {
	m.events.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) ObserveInstallments(n int) {
	m.installments.Observe(float64(n))
}
