package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the core pipeline metrics shared across components.
type Metrics struct {
	ComponentStatus    *prometheus.GaugeVec
	MessagesReceived   *prometheus.CounterVec
	ReadingsProcessed  *prometheus.CounterVec
	ReadingsDropped    *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec

	SessionsCompleted   prometheus.Counter
	SessionsAutoCreated prometheus.Counter

	NotificationsPublished prometheus.Counter
	NotificationsFailed    prometheus.Counter

	// Transport connectivity
	MQTTConnected prometheus.Gauge
	NATSConnected prometheus.Gauge
	NATSRTT       prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all pipeline metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "spectrad",
				Subsystem: "component",
				Name:      "status",
				Help:      "Component status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"component"},
		),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spectrad",
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Total number of MQTT messages received",
			},
			[]string{"component", "class"},
		),

		ReadingsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spectrad",
				Subsystem: "readings",
				Name:      "processed_total",
				Help:      "Total number of readings processed by outcome",
			},
			[]string{"component", "outcome"},
		),

		ReadingsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spectrad",
				Subsystem: "readings",
				Name:      "dropped_total",
				Help:      "Total number of messages dropped before session handling",
			},
			[]string{"component", "reason"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "spectrad",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Message processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"component", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spectrad",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),

		SessionsCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "spectrad",
				Subsystem: "sessions",
				Name:      "completed_total",
				Help:      "Total number of sessions transitioned to completed",
			},
		),

		SessionsAutoCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "spectrad",
				Subsystem: "sessions",
				Name:      "auto_created_total",
				Help:      "Total number of sessions lazily created from inbound readings",
			},
		),

		NotificationsPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "spectrad",
				Subsystem: "notify",
				Name:      "published_total",
				Help:      "Total number of session update notifications published",
			},
		),

		NotificationsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "spectrad",
				Subsystem: "notify",
				Name:      "failed_total",
				Help:      "Total number of session update notifications that failed to publish",
			},
		),

		MQTTConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "spectrad",
				Subsystem: "mqtt",
				Name:      "connected",
				Help:      "MQTT connection status (0=disconnected, 1=connected)",
			},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "spectrad",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "spectrad",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),
	}
}

// RecordComponentStatus updates the component status metric
func (c *Metrics) RecordComponentStatus(component string, status int) {
	c.ComponentStatus.WithLabelValues(component).Set(float64(status))
}

// RecordMessageReceived increments the received message counter
func (c *Metrics) RecordMessageReceived(component, class string) {
	c.MessagesReceived.WithLabelValues(component, class).Inc()
}

// RecordReadingProcessed increments the processed reading counter
func (c *Metrics) RecordReadingProcessed(component, outcome string) {
	c.ReadingsProcessed.WithLabelValues(component, outcome).Inc()
}

// RecordReadingDropped increments the dropped message counter
func (c *Metrics) RecordReadingDropped(component, reason string) {
	c.ReadingsDropped.WithLabelValues(component, reason).Inc()
}

// RecordProcessingDuration records processing time
func (c *Metrics) RecordProcessingDuration(component, operation string, duration time.Duration) {
	c.ProcessingDuration.WithLabelValues(component, operation).Observe(duration.Seconds())
}

// RecordError increments the error counter
func (c *Metrics) RecordError(component, errorType string) {
	c.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordMQTTStatus updates the MQTT connection status
func (c *Metrics) RecordMQTTStatus(connected bool) {
	c.MQTTConnected.Set(boolGauge(connected))
}

// RecordNATSStatus updates the NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	c.NATSConnected.Set(boolGauge(connected))
}

// RecordNATSRTT updates the NATS round-trip time
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

func boolGauge(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
