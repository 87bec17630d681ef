package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the zap engine and registry.
type Metrics struct {
	// --- Engine operations ---
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Shortfalls        prometheus.Counter
	SessionRollbacks  prometheus.Counter
	QuotesTotal       prometheus.Counter

	// --- Registry ---
	HatchCreated  prometheus.Counter
	HatchUpdated  prometheus.Counter
	HealthUpdates prometheus.Counter
	EntitiesLive  prometheus.Gauge
}

// NewMetrics creates and registers all metrics against reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	opBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zap_operations_total",
			Help: "Engine operations by kind and outcome",
		}, []string{"kind", "outcome"}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zap_operation_duration_seconds",
			Help:    "Time to complete one engine operation",
			Buckets: opBuckets,
		}, []string{"kind"}),

		Shortfalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "zap_liquidity_shortfalls_total",
			Help: "Operations rejected below their liquidity floor",
		}),

		SessionRollbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "zap_session_rollbacks_total",
			Help: "Sessions unwound after a callback error",
		}),

		QuotesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "zap_quotes_total",
			Help: "Quote requests served",
		}),

		HatchCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "zap_hatch_created_total",
			Help: "New entities created by hatch notifications",
		}),

		HatchUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "zap_hatch_updated_total",
			Help: "Existing entities updated by hatch notifications",
		}),

		HealthUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "zap_health_updates_total",
			Help: "Accepted health mutations",
		}),

		EntitiesLive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "zap_entities_live",
			Help: "Current number of tracked entities",
		}),
	}
}
