// Package monitoring records timing and volume of classifier operations.
//
// MetricsCollector keeps an in-process log of operations (preprocessing,
// training, scoring) for reports and the CLI. Metrics adds prometheus
// collectors on a caller-supplied registry.
package monitoring

import (
	"sync"
	"time"
)

// OperationMetrics describes one recorded operation.
type OperationMetrics struct {
	Operation  string        `json:"operation"`
	Duration   time.Duration `json:"duration"`
	Rows       int64         `json:"rows"`
	MemoryUsed int64         `json:"memory_used"`
	Failed     bool          `json:"failed"`
}

// MetricsCollector collects operation metrics. It is safe for concurrent use.
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics []OperationMetrics
	enabled bool
}

// NewMetricsCollector creates a collector.
func NewMetricsCollector(enabled bool) *MetricsCollector {
	return &MetricsCollector{enabled: enabled}
}

// IsEnabled reports whether operations are being recorded.
func (mc *MetricsCollector) IsEnabled() bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.enabled
}

// SetEnabled turns recording on or off.
func (mc *MetricsCollector) SetEnabled(enabled bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.enabled = enabled
}

// RecordOperation runs fn and records its duration, the row count it
// reports and the heap growth it caused. fn always runs, even when the
// collector is disabled.
func (mc *MetricsCollector) RecordOperation(operation string, fn func() (int, error)) error {
	if !mc.IsEnabled() {
		_, err := fn()
		return err
	}

	before := heapAlloc()
	start := time.Now()
	rows, err := fn()
	duration := time.Since(start)
	after := heapAlloc()

	m := OperationMetrics{
		Operation: operation,
		Duration:  duration,
		Rows:      int64(rows),
		Failed:    err != nil,
	}
	if after > before {
		m.MemoryUsed = int64(after - before)
	}

	mc.mu.Lock()
	mc.metrics = append(mc.metrics, m)
	mc.mu.Unlock()
	return err
}

// GetMetrics returns a copy of the recorded operations in recording order.
func (mc *MetricsCollector) GetMetrics() []OperationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	out := make([]OperationMetrics, len(mc.metrics))
	copy(out, mc.metrics)
	return out
}

// MetricsSummary aggregates recorded operations.
type MetricsSummary struct {
	TotalOperations int                      `json:"total_operations"`
	Failed          int                      `json:"failed"`
	TotalDuration   time.Duration            `json:"total_duration"`
	AverageDuration time.Duration            `json:"average_duration"`
	TotalMemory     int64                    `json:"total_memory"`
	TotalRows       int64                    `json:"total_rows"`
	OperationCounts map[string]int           `json:"operation_counts"`
	Durations       map[string]time.Duration `json:"durations"`
}

// GetSummary aggregates the recorded operations.
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	s := MetricsSummary{
		TotalOperations: len(mc.metrics),
		OperationCounts: make(map[string]int),
		Durations:       make(map[string]time.Duration),
	}
	for _, m := range mc.metrics {
		s.TotalDuration += m.Duration
		s.TotalMemory += m.MemoryUsed
		s.TotalRows += m.Rows
		s.OperationCounts[m.Operation]++
		s.Durations[m.Operation] += m.Duration
		if m.Failed {
			s.Failed++
		}
	}
	if s.TotalOperations > 0 {
		s.AverageDuration = s.TotalDuration / time.Duration(s.TotalOperations)
	}
	return s
}
