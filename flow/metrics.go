// Package flow provides the core durable workflow execution engine.
package flow

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics exposes Prometheus-compatible counters and gauges for
// production monitoring of flow execution, namespaced "sagaflow_":
//
//   - inflight_steps (gauge): steps currently executing concurrently,
//     unlabeled.
//   - parallel_queue_depth (gauge): parallel ForEach items not yet
//     settled, whether dispatched or still waiting, unlabeled.
//   - step_latency_ms (histogram): step execution duration, labeled
//     flow_id, step_id, status (success/rejected/failed/timeout).
//   - retries_total (counter): retry attempts, labeled flow_id, step_id.
//   - rollback_total (counter): compensation invocations, labeled
//     flow_id, step_id, outcome (ok/failed).
//   - backpressure_total (counter): ForEach permit-acquisition timeouts,
//     labeled flow_id.
type PrometheusMetrics struct {
	inflightSteps      prometheus.Gauge
	parallelQueueDepth prometheus.Gauge
	stepLatency        *prometheus.HistogramVec
	retries            *prometheus.CounterVec
	rollback           *prometheus.CounterVec
	backpressure       *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics registers and returns a metrics collector against
// registry. Pass prometheus.DefaultRegisterer for the global registry, or
// a fresh prometheus.NewRegistry() for test isolation.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		inflightSteps: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sagaflow",
			Name:      "inflight_steps",
			Help:      "Current number of step bodies executing concurrently",
		}),
		parallelQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sagaflow",
			Name:      "parallel_queue_depth",
			Help:      "Parallel ForEach items not yet settled",
		}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sagaflow",
			Name:      "step_latency_ms",
			Help:      "Step execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"flow_id", "step_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "retries_total",
			Help:      "Cumulative retry attempts across all steps",
		}, []string{"flow_id", "step_id"}),
		rollback: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "rollback_total",
			Help:      "Compensation body invocations during rollback",
		}, []string{"flow_id", "step_id", "outcome"}),
		backpressure: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "backpressure_total",
			Help:      "ForEach permit-acquisition timeouts",
		}, []string{"flow_id"}),
	}
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

func (pm *PrometheusMetrics) RecordStepLatency(flowID, stepID string, latency time.Duration, status string) {
	if !pm.isEnabled() {
		return
	}
	pm.stepLatency.WithLabelValues(flowID, stepID, status).Observe(float64(latency.Milliseconds()))
}

func (pm *PrometheusMetrics) IncrementRetries(flowID, stepID string) {
	if !pm.isEnabled() {
		return
	}
	pm.retries.WithLabelValues(flowID, stepID).Inc()
}

func (pm *PrometheusMetrics) IncrementRollback(flowID, stepID, outcome string) {
	if !pm.isEnabled() {
		return
	}
	pm.rollback.WithLabelValues(flowID, stepID, outcome).Inc()
}

func (pm *PrometheusMetrics) IncrementBackpressure(flowID string) {
	if !pm.isEnabled() {
		return
	}
	pm.backpressure.WithLabelValues(flowID).Inc()
}

func (pm *PrometheusMetrics) SetInflightSteps(count int) {
	if !pm.isEnabled() {
		return
	}
	pm.inflightSteps.Set(float64(count))
}

func (pm *PrometheusMetrics) SetParallelQueueDepth(depth int) {
	if !pm.isEnabled() {
		return
	}
	pm.parallelQueueDepth.Set(float64(depth))
}

// Disable stops recording without unregistering the collectors.
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable resumes recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
