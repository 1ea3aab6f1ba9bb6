package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "huntex"

// Metrics bundles the prometheus collectors and the operation collector used
// by training and inference. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Operations *MetricsCollector

	predictions      *prometheus.CounterVec
	rowErrors        *prometheus.CounterVec
	rowsDropped      *prometheus.CounterVec
	trainingDuration prometheus.Histogram
	treesFitted      prometheus.Counter
	bulkBatchRows    prometheus.Histogram
}

// NewMetrics registers the classifier collectors on reg. A nil reg creates
// unregistered collectors, which is convenient in tests and one-off CLI runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: NewMetricsCollector(true),
		predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Classified records by predicted disposition and input path",
		}, []string{"label", "path"}),
		rowErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_errors_total",
			Help:      "Records rejected during inference by error kind",
		}, []string{"kind"}),
		rowsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_rows_dropped_total",
			Help:      "Training rows removed during preprocessing by reason",
		}, []string{"reason"}),
		trainingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Wall time of a full training run",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7min
		}),
		treesFitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trees_fitted_total",
			Help:      "Decision trees fitted across all training runs",
		}),
		bulkBatchRows: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_batch_rows",
			Help:      "Rows per bulk classification request",
			Buckets:   []float64{1, 10, 100, 1000, 10000, 100000},
		}),
	}
}

// Record runs fn through the operation collector.
func (m *Metrics) Record(operation string, fn func() (int, error)) error {
	if m == nil {
		_, err := fn()
		return err
	}
	return m.Operations.RecordOperation(operation, fn)
}

// ObservePrediction counts one classified record.
func (m *Metrics) ObservePrediction(label, path string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(label, path).Inc()
}

// ObserveRowError counts one rejected record.
func (m *Metrics) ObserveRowError(kind string) {
	if m == nil {
		return
	}
	m.rowErrors.WithLabelValues(kind).Inc()
}

// ObserveDropped counts n training rows removed for reason.
func (m *Metrics) ObserveDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsDropped.WithLabelValues(reason).Add(float64(n))
}

// ObserveTraining records a finished training run.
func (m *Metrics) ObserveTraining(d time.Duration, trees int) {
	if m == nil {
		return
	}
	m.trainingDuration.Observe(d.Seconds())
	m.treesFitted.Add(float64(trees))
}

// ObserveBatch records the size of a bulk request.
func (m *Metrics) ObserveBatch(rows int) {
	if m == nil {
		return
	}
	m.bulkBatchRows.Observe(float64(rows))
}
