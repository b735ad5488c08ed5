package extensions

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	mscan "github.com/pumped-fn/mscan-go"
)

// MetricsExtension exports operation counts and latencies to Prometheus.
type MetricsExtension struct {
	mscan.BaseExtension
	registerer prometheus.Registerer

	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	records    *prometheus.CounterVec
}

// NewMetricsExtension creates a metrics extension registering its
// collectors on reg when the extension is added to a scope.
func NewMetricsExtension(reg prometheus.Registerer) *MetricsExtension {
	return &MetricsExtension{
		BaseExtension: mscan.NewBaseExtension("metrics"),
		registerer:    reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mscan_operations_total",
			Help: "Total reactive operations by kind and name",
		}, []string{"op", "name"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mscan_operation_failures_total",
			Help: "Total failed operations by kind",
		}, []string{"op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mscan_operation_duration_seconds",
			Help:    "Operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"op"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mscan_records_total",
			Help: "Records carried by merges and loads",
		}, []string{"op"}),
	}
}

func (e *MetricsExtension) Init(scope *mscan.Scope) error {
	for _, c := range []prometheus.Collector{e.operations, e.failures, e.duration, e.records} {
		if err := e.registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (e *MetricsExtension) Wrap(ctx context.Context, next func() error, op *mscan.Operation) error {
	start := time.Now()
	err := next()

	kind := string(op.Kind)
	e.operations.WithLabelValues(kind, op.Name).Inc()
	e.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if op.Records > 0 {
		e.records.WithLabelValues(kind).Add(float64(op.Records))
	}
	return err
}

func (e *MetricsExtension) OnError(err error, op *mscan.Operation, scope *mscan.Scope) {
	e.failures.WithLabelValues(string(op.Kind)).Inc()
}

func (e *MetricsExtension) Dispose(scope *mscan.Scope) error {
	for _, c := range []prometheus.Collector{e.operations, e.failures, e.duration, e.records} {
		e.registerer.Unregister(c)
	}
	return nil
}

// Operations returns the operation counter, for tests and exporters.
func (e *MetricsExtension) Operations() *prometheus.CounterVec {
	return e.operations
}
