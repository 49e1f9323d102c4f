package utils

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Tracks performance metrics across the system
type MetricsCollector struct {
	requests  prometheus.Counter
	errors    prometheus.Counter
	latency   *prometheus.HistogramVec
	votes     *prometheus.CounterVec
	underflow *prometheus.CounterVec

	systemStartTime time.Time
}

// NewMetricsCollector registers the collectors on reg. A nil reg registers nothing,
// which keeps tests free of global registry collisions.
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scholar",
			Name:      "requests_total",
			Help:      "Requests handled by the API.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scholar",
			Name:      "errors_total",
			Help:      "Requests that failed with a server-side error.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scholar",
			Name:      "operation_duration_seconds",
			Help:      "Latency of core operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholar",
			Name:      "vote_transitions_total",
			Help:      "Applied vote transitions by target type and transition.",
		}, []string{"target_type", "transition"}),
		underflow: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholar",
			Name:      "counter_underflows_total",
			Help:      "Vote counters clamped back to zero after going negative.",
		}, []string{"target_type"}),
		systemStartTime: time.Now(),
	}

	if reg != nil {
		reg.MustRegister(mc.requests, mc.errors, mc.latency, mc.votes, mc.underflow)
	}
	return mc
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.requests.Inc()
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.errors.Inc()
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.latency.WithLabelValues(operationName).Observe(duration.Seconds())
}

func (mc *MetricsCollector) RecordTransition(targetType, transition string) {
	mc.votes.WithLabelValues(targetType, transition).Inc()
}

func (mc *MetricsCollector) RecordUnderflow(targetType string) {
	mc.underflow.WithLabelValues(targetType).Inc()
}

func (mc *MetricsCollector) Uptime() time.Duration {
	return time.Since(mc.systemStartTime)
}
