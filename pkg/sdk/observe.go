package routedex

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation statuses. A rejected call failed on its input (missing row,
// invalid payload or criteria, stale version); an error is a backend failure.
const (
	statusOK       = "ok"
	statusRejected = "rejected"
	statusError    = "error"
)

// clientErrors are the sentinels that classify a failure as rejected.
var clientErrors = []error{
	ErrNotFound,
	ErrUnknownEntity,
	ErrInvalidCriteria,
	ErrInvalidQuery,
	ErrValidation,
	ErrConflict,
	ErrInvalidReference,
	ErrKeywordSearchNotSupported,
}

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routedex",
		Subsystem: "sdk",
		Name:      "operations_total",
		Help:      "SDK operations by entity, operation and status (ok, rejected, error).",
	}, []string{"entity", "operation", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routedex",
		Subsystem: "sdk",
		Name:      "operation_duration_seconds",
		Help:      "SDK operation latency by entity and operation.",
		Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
	}, []string{"entity", "operation"})

	var err error
	if operations, err = registerOrReuse(reg, operations); err != nil {
		return nil, err
	}
	if duration, err = registerOrReuse(reg, duration); err != nil {
		return nil, err
	}
	return &sdkMetrics{operations: operations, duration: duration}, nil
}

// registerOrReuse registers c, or returns the collector a previous client
// registered under the same descriptor.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("routedex: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("routedex: metric registered with incompatible type %T", are.ExistingCollector)
	}
	return existing, nil
}

// observer logs and measures SDK calls. Both sinks are optional.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// observe records one call of op on entity ("" for client-wide calls).
func (o *observer) observe(entity, op string, start time.Time, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	status := classify(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(entity, op, status).Inc()
		o.metrics.duration.WithLabelValues(entity, op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}

	attrs := []any{slog.String("op", op), slog.Duration("duration", elapsed)}
	if entity != "" {
		attrs = append(attrs, slog.String("entity", entity))
	}
	switch status {
	case statusOK:
		o.logger.Debug("operation completed", attrs...)
	case statusRejected:
		o.logger.Debug("operation rejected", append(attrs, slog.Any("error", err))...)
	default:
		o.logger.Warn("operation failed", append(attrs, slog.Any("error", err))...)
	}
}

func classify(err error) string {
	if err == nil {
		return statusOK
	}
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return statusRejected
		}
	}
	return statusError
}
