package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/spectrad/codec"
	"github.com/c360/spectrad/component"
	"github.com/c360/spectrad/errors"
	"github.com/c360/spectrad/metric"
	"github.com/c360/spectrad/pkg/retry"
	"github.com/c360/spectrad/session"
	"github.com/c360/spectrad/store"
	"github.com/c360/spectrad/topic"
)

// Transport is the subscribing side of the MQTT connection.
type Transport interface {
	Subscribe(topicFilter string, qos byte, handler func(topic string, payload []byte)) error
	Unsubscribe(topicFilter string) error
}

// Notifier emits session update events after state-changing arrivals.
type Notifier interface {
	PublishSessionUpdate(ctx context.Context, session store.Session, pointCount int) error
}

// DeviceGate answers whether a device is registered and active.
type DeviceGate interface {
	GetDevice(ctx context.Context, deviceID string) (*store.Device, error)
}

const (
	// measurementQoS is the at-least-once delivery level for data topics
	measurementQoS byte = 1

	defaultQueueSize = 1024
)

// Drop reasons for the dropped-message counter
const (
	dropUnrecognizedTopic = "unrecognized_topic"
	dropControlEcho       = "control_echo"
	dropInactiveDevice    = "inactive_device"
	dropInvalidPayload    = "invalid_payload"
	dropUnknownSession    = "unknown_session"
	dropStoreError        = "store_error"
	dropQueueFull         = "queue_full"
	dropNotRunning        = "not_running"
)

// Config holds business configuration for the coordinator
type Config struct {
	// QueueSize bounds the intake channel between the transport callback and
	// the run loop. Zero selects the default.
	QueueSize int `json:"queue_size"`
}

// Validate implements config validation for the coordinator
func (c *Config) Validate() error {
	if c.QueueSize < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("queue_size %d is negative", c.QueueSize),
			"Config", "Validate", "queue size validation")
	}
	return nil
}

// DefaultConfig returns sensible defaults for the coordinator
func DefaultConfig() Config {
	return Config{QueueSize: defaultQueueSize}
}

// CoordinatorDeps holds runtime dependencies for the coordinator
type CoordinatorDeps struct {
	Name            string
	Config          Config
	Transport       Transport
	Engine          *session.Engine
	Devices         DeviceGate
	Notifier        Notifier
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

type inboundMessage struct {
	Topic   string
	Payload []byte
}

// Coordinator subscribes to the measurement wildcard and processes arrivals
// in order on a single run loop. The transport callback only enqueues, so
// broker delivery is never blocked by store latency.
type Coordinator struct {
	name      string
	queueSize int

	transport Transport
	engine    *session.Engine
	devices   DeviceGate
	notifier  Notifier
	logger    *slog.Logger

	retryConfig retry.Config

	messages chan inboundMessage

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup

	// Flow counters
	messagesReceived atomic.Int64
	bytesReceived    atomic.Int64
	errorCount       atomic.Int64
	lastActivity     atomic.Value // stores time.Time

	metrics *Metrics
	core    *metric.Metrics
}

// Ensure Coordinator implements the component contracts
var _ component.Lifecycle = (*Coordinator)(nil)
var _ component.Inspectable = (*Coordinator)(nil)

// NewCoordinator creates an ingestion coordinator from its dependencies
func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "ingest")
	}

	queueSize := deps.Config.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	c := &Coordinator{
		name:        deps.Name,
		queueSize:   queueSize,
		transport:   deps.Transport,
		engine:      deps.Engine,
		devices:     deps.Devices,
		notifier:    deps.Notifier,
		logger:      logger,
		retryConfig: retry.DefaultConfig(),
		startTime:   time.Now(),
		metrics:     newMetrics(deps.MetricsRegistry),
	}
	if deps.MetricsRegistry != nil {
		c.core = deps.MetricsRegistry.CoreMetrics()
	}
	c.lastActivity.Store(time.Time{})
	return c
}

// Meta returns the component metadata
func (c *Coordinator) Meta() component.Metadata {
	name := c.name
	if name == "" {
		name = "ingest-coordinator"
	}
	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("Measurement ingestion from %s", topic.MeasurementPattern()),
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (c *Coordinator) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    c.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorCount.Load()),
		Uptime:     time.Since(c.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (c *Coordinator) DataFlow() component.FlowMetrics {
	messages := c.messagesReceived.Load()
	bytes := c.bytesReceived.Load()
	errorCount := c.errorCount.Load()
	lastActivity, _ := c.lastActivity.Load().(time.Time)

	var messagesPerSecond, bytesPerSecond, errorRate float64
	if uptime := time.Since(c.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(messages) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}
	if messages > 0 {
		errorRate = float64(errorCount) / float64(messages)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates dependencies before Start
func (c *Coordinator) Initialize() error {
	if c.transport == nil {
		return errors.WrapInvalid(fmt.Errorf("nil transport"),
			"ingest", "Initialize", "transport validation")
	}
	if c.engine == nil {
		return errors.WrapInvalid(fmt.Errorf("nil session engine"),
			"ingest", "Initialize", "engine validation")
	}
	if c.notifier == nil {
		return errors.WrapInvalid(fmt.Errorf("nil notifier"),
			"ingest", "Initialize", "notifier validation")
	}
	return nil
}

// Start subscribes to the measurement wildcard and begins the run loop
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		return nil // Already running, idempotent
	}

	c.messages = make(chan inboundMessage, c.queueSize)
	c.shutdown = make(chan struct{})
	c.done = make(chan struct{})

	// Mark running before subscribing so deliveries racing the subscribe
	// call are enqueued rather than dropped.
	c.running.Store(true)

	subscribeOperation := func() error {
		return c.transport.Subscribe(topic.MeasurementPattern(), measurementQoS, c.onMessage)
	}
	if err := retry.Do(ctx, c.retryConfig, subscribeOperation); err != nil {
		c.running.Store(false)
		c.messages = nil
		c.shutdown = nil
		c.done = nil
		return errors.WrapTransient(err, "ingest", "Start", "subscribe measurement pattern")
	}

	c.startTime = time.Now()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(c.done)
		c.run(ctx)
	}()

	c.logger.Info("Ingestion coordinator started",
		"pattern", topic.MeasurementPattern(),
		"queue_size", c.queueSize)
	return nil
}

// Stop unsubscribes, drains queued messages, and waits for the run loop
func (c *Coordinator) Stop(timeout time.Duration) error {
	if !c.running.Load() {
		return nil
	}
	c.running.Store(false)

	// Best effort: the broker may already be gone during shutdown.
	if err := c.transport.Unsubscribe(topic.MeasurementPattern()); err != nil {
		c.logger.Debug("Unsubscribe on shutdown failed", "error", err)
	}

	c.mu.Lock()
	if c.shutdown != nil {
		select {
		case <-c.shutdown:
		default:
			close(c.shutdown)
		}
	}
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"ingest", "Stop", "graceful shutdown")
	}

	c.logger.Info("Ingestion coordinator stopped")
	return nil
}

// onMessage is the transport delivery callback. It must return quickly, so
// it only enqueues; a full queue drops the message (QoS 1 redelivery or the
// duplicate guard covers the gap).
func (c *Coordinator) onMessage(msgTopic string, payload []byte) {
	if !c.running.Load() {
		c.countDrop(dropNotRunning)
		return
	}

	c.messagesReceived.Add(1)
	c.bytesReceived.Add(int64(len(payload)))
	now := time.Now()
	c.lastActivity.Store(now)
	if c.metrics != nil {
		c.metrics.messagesReceived.Inc()
		c.metrics.lastActivity.Set(float64(now.Unix()))
	}

	data := make([]byte, len(payload))
	copy(data, payload)

	select {
	case c.messages <- inboundMessage{Topic: msgTopic, Payload: data}:
		if c.metrics != nil {
			c.metrics.queueDepth.Set(float64(len(c.messages)))
		}
	default:
		c.countDrop(dropQueueFull)
		c.logger.Warn("Intake queue full, dropping message", "topic", msgTopic)
	}
}

// run processes queued messages in arrival order until Stop closes the
// shutdown channel, then drains whatever is still queued. Handling is
// detached from the caller's context so a cancelled signal context cannot
// abort an in-flight store write or skip the drain; Stop owns termination.
func (c *Coordinator) run(ctx context.Context) {
	msgCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-c.shutdown:
			for {
				select {
				case msg := <-c.messages:
					c.handleMessage(msgCtx, msg)
				default:
					return
				}
			}
		case msg := <-c.messages:
			c.handleMessage(msgCtx, msg)
			if c.metrics != nil {
				c.metrics.queueDepth.Set(float64(len(c.messages)))
			}
		}
	}
}

// handleMessage runs the full pipeline for one delivery: route, gate,
// parse, state machine, notify. Every early exit is a logged drop; a store
// failure aborts this message only.
func (c *Coordinator) handleMessage(ctx context.Context, msg inboundMessage) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.processDuration.Observe(time.Since(start).Seconds())
		}
	}()

	route, err := topic.Classify(msg.Topic)
	if err != nil {
		c.countDrop(dropUnrecognizedTopic)
		c.logger.Warn("Dropping message on unrecognized topic", "topic", msg.Topic)
		return
	}
	if route.Class != topic.ClassMeasurement {
		// The wildcard should never match control topics; guard anyway.
		c.countDrop(dropControlEcho)
		return
	}

	if !c.deviceAllowed(ctx, route.DeviceID) {
		c.countDrop(dropInactiveDevice)
		c.logger.Warn("Dropping reading from inactive device",
			"device_id", route.DeviceID,
			"session_id", route.SessionID)
		return
	}

	reading, err := codec.ParseReading(msg.Payload)
	if err != nil {
		c.countDrop(dropInvalidPayload)
		c.logger.Warn("Dropping invalid measurement payload",
			"topic", msg.Topic,
			"payload", string(msg.Payload),
			"error", err)
		return
	}
	if reading.DeviceID == "" {
		reading.DeviceID = route.DeviceID
	}

	outcome, err := c.engine.OnReadingArrival(ctx, route.SessionID, reading)
	if err != nil {
		c.errorCount.Add(1)
		c.countDrop(dropStoreError)
		c.logger.Error("Store failure while applying reading, dropping message",
			"session_id", route.SessionID,
			"error", err)
		return
	}

	if c.metrics != nil {
		c.metrics.outcomes.WithLabelValues(outcome.Kind.String()).Inc()
	}

	switch outcome.Kind {
	case session.OutcomeUnknownSession:
		c.countDrop(dropUnknownSession)
		c.logger.Warn("Dropping reading for unknown session",
			"session_id", route.SessionID,
			"device_id", route.DeviceID)
		return
	case session.OutcomeAlreadyCompleted:
		// The device keeps publishing after completion; stop listening to
		// this topic. Best effort, a failure changes nothing.
		if err := c.transport.Unsubscribe(msg.Topic); err != nil {
			c.logger.Debug("Post-completion unsubscribe failed",
				"topic", msg.Topic, "error", err)
		}
	case session.OutcomeAccepted, session.OutcomeDuplicate:
		c.logger.Info("Reading processed",
			"session_id", route.SessionID,
			"outcome", outcome.Kind.String(),
			"point_count", outcome.PointCount,
			"auto_created", outcome.AutoCreated)
	}

	if c.core != nil {
		if outcome.AutoCreated {
			c.core.SessionsAutoCreated.Inc()
		}
		if outcome.StateChanged && outcome.Session.Status == store.StatusCompleted {
			c.core.SessionsCompleted.Inc()
		}
	}

	if outcome.StateChanged {
		c.notifyAsync(outcome)
	}
}

// deviceAllowed implements the registry gate: a registered-but-inactive
// device is refused, an unregistered device passes (registration is
// optional).
func (c *Coordinator) deviceAllowed(ctx context.Context, deviceID string) bool {
	if c.devices == nil || deviceID == "" {
		return true
	}
	device, err := c.devices.GetDevice(ctx, deviceID)
	if err != nil {
		// The gate is advisory; a store hiccup must not drop readings.
		c.logger.Warn("Device lookup failed, admitting reading", "device_id", deviceID, "error", err)
		return true
	}
	return device == nil || device.Active
}

// notifyAsync publishes the session update on a fire-and-forget goroutine.
// A panic or failure in the notifier can never abort or delay ingestion.
func (c *Coordinator) notifyAsync(outcome session.Outcome) {
	snapshot := outcome.Session
	pointCount := outcome.PointCount

	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Notifier panicked", "session_id", snapshot.ID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := c.notifier.PublishSessionUpdate(ctx, snapshot, pointCount); err != nil {
			if c.metrics != nil {
				c.metrics.notifyFailures.Inc()
			}
			if c.core != nil {
				c.core.NotificationsFailed.Inc()
			}
			c.logger.Warn("Session update notification failed",
				"session_id", snapshot.ID,
				"error", err)
			return
		}
		if c.core != nil {
			c.core.NotificationsPublished.Inc()
		}
	}()
}

func (c *Coordinator) countDrop(reason string) {
	if c.metrics != nil {
		c.metrics.messagesDropped.WithLabelValues(reason).Inc()
	}
}
