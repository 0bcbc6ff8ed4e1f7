package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records router transaction activity and solvency controller
// state transitions.
type EngineMetrics struct {
	operations        *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	emergencyTriggers prometheus.Counter
	refills           prometheus.Counter
	poolBalances      *prometheus.GaugeVec
	warning           prometheus.Gauge
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Metrics returns the lazily-initialised engine metrics registry.
func Metrics() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stratapool",
				Subsystem: "router",
				Name:      "operations_total",
				Help:      "Total router transactions segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stratapool",
				Subsystem: "router",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for router transactions.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			emergencyTriggers: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stratapool",
				Subsystem: "solvency",
				Name:      "emergency_triggers_total",
				Help:      "Number of emergency protocol activations.",
			}),
			refills: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stratapool",
				Subsystem: "solvency",
				Name:      "refills_total",
				Help:      "Number of proactive stable reserve refills.",
			}),
			poolBalances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "stratapool",
				Subsystem: "pool",
				Name:      "balance",
				Help:      "Reserve balances in native denomination.",
			}, []string{"pool"}),
			warning: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stratapool",
				Subsystem: "solvency",
				Name:      "warning_active",
				Help:      "Whether the solvency warning state is active.",
			}),
		}
		prometheus.MustRegister(
			engineRegistry.operations,
			engineRegistry.duration,
			engineRegistry.emergencyTriggers,
			engineRegistry.refills,
			engineRegistry.poolBalances,
			engineRegistry.warning,
		)
	})
	return engineRegistry
}

// ObserveOperation records a finished router transaction.
func (m *EngineMetrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordEmergencyTrigger counts an emergency protocol activation.
func (m *EngineMetrics) RecordEmergencyTrigger() {
	if m == nil {
		return
	}
	m.emergencyTriggers.Inc()
}

// RecordRefill counts a proactive stable reserve refill.
func (m *EngineMetrics) RecordRefill() {
	if m == nil {
		return
	}
	m.refills.Inc()
}

// SetPoolBalance publishes a reserve balance gauge.
func (m *EngineMetrics) SetPoolBalance(poolKind string, balance float64) {
	if m == nil {
		return
	}
	m.poolBalances.WithLabelValues(poolKind).Set(balance)
}

// SetWarning publishes the warning state gauge.
func (m *EngineMetrics) SetWarning(active bool) {
	if m == nil {
		return
	}
	if active {
		m.warning.Set(1)
		return
	}
	m.warning.Set(0)
}
