package ingest

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/spectrad/metric"
)

// Metrics holds Prometheus metrics for the ingestion coordinator
type Metrics struct {
	messagesReceived prometheus.Counter
	messagesDropped  *prometheus.CounterVec
	outcomes         *prometheus.CounterVec
	processDuration  prometheus.Histogram
	notifyFailures   prometheus.Counter
	queueDepth       prometheus.Gauge
	lastActivity     prometheus.Gauge
}

// newMetrics creates and registers coordinator metrics. Returns nil when no
// registry is provided (nil input = nil feature pattern).
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spectrad",
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Total measurement messages delivered by the broker",
		}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spectrad",
			Subsystem: "ingest",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped before completing session handling",
		}, []string{"reason"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spectrad",
			Subsystem: "ingest",
			Name:      "outcomes_total",
			Help:      "Reading arrival outcomes by kind",
		}, []string{"outcome"}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spectrad",
			Subsystem: "ingest",
			Name:      "process_duration_seconds",
			Help:      "Per-message processing duration",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spectrad",
			Subsystem: "ingest",
			Name:      "notify_failures_total",
			Help:      "Session update notifications that failed to publish",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spectrad",
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Messages waiting in the coordinator queue",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spectrad",
			Subsystem: "ingest",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last received message",
		}),
	}

	_ = registry.RegisterCounter("ingest", "messages_received", metrics.messagesReceived)
	_ = registry.RegisterCounterVec("ingest", "messages_dropped", metrics.messagesDropped)
	_ = registry.RegisterCounterVec("ingest", "outcomes", metrics.outcomes)
	_ = registry.RegisterHistogram("ingest", "process_duration", metrics.processDuration)
	_ = registry.RegisterCounter("ingest", "notify_failures", metrics.notifyFailures)
	_ = registry.RegisterGauge("ingest", "queue_depth", metrics.queueDepth)
	_ = registry.RegisterGauge("ingest", "last_activity", metrics.lastActivity)

	return metrics
}
