package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "routedex"

// Propagation and reconciliation metrics.
var (
	PropagationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "propagation_total",
			Help:      "Index propagation jobs by entity, change kind and result",
		},
		[]string{"entity", "change", "result"}, // result: applied / stale / missing / skipped / failed
	)

	PropagationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "propagation_duration_seconds",
			Help:      "Time from enqueue to the final index outcome",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"entity"},
	)

	PropagationRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "propagation_retries_total",
			Help:      "Failed index write attempts that were retried",
		},
		[]string{"entity"},
	)

	PropagationQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "propagation_queue_depth",
			Help:      "Queued changes per propagation shard",
		},
		[]string{"shard"},
	)

	ReconciliationDebt = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconciliation_debt",
			Help:      "Outstanding changes whose propagation exhausted retries",
		},
		[]string{"entity"},
	)

	ReconcileRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Reconciliation runs by result",
		},
		[]string{"result"}, // "ok" / "error"
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestDuration,
		httpRequestsTotal,
		PropagationTotal,
		PropagationDuration,
		PropagationRetries,
		PropagationQueueDepth,
		ReconciliationDebt,
		ReconcileRunsTotal,
	}
}

var (
	registerMu sync.Mutex
	registered = map[prometheus.Registerer]bool{}
)

// Register adds every routedex collector to reg. Registering twice with the
// same registerer is a no-op.
func Register(reg prometheus.Registerer) error {
	registerMu.Lock()
	defer registerMu.Unlock()

	if registered[reg] {
		return nil
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err //nolint:wrapcheck // registry errors are descriptive
		}
	}
	registered[reg] = true
	return nil
}
