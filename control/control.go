// Package control publishes device control commands. The only command is
// start_measurement, which provisions the session row before instructing
// the device, so the first reading always finds its session.
package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360/spectrad/codec"
	"github.com/c360/spectrad/errors"
	"github.com/c360/spectrad/store"
	"github.com/c360/spectrad/topic"
)

// controlQoS is the at-least-once delivery level for command topics.
const controlQoS byte = 1

// Transport is the publishing side of the MQTT connection.
type Transport interface {
	Publish(topic string, qos byte, payload []byte) error
}

// SessionCreator persists the session row backing a started measurement.
type SessionCreator interface {
	CreateSession(ctx context.Context, session *store.Session) error
}

// Publisher starts measurement sessions on devices.
type Publisher struct {
	transport Transport
	sessions  SessionCreator
	logger    *slog.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewPublisher creates a control publisher over the given transport and store.
func NewPublisher(transport Transport, sessions SessionCreator, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default().With("component", "control")
	}
	return &Publisher{
		transport: transport,
		sessions:  sessions,
		logger:    logger,
		now:       time.Now,
	}
}

// StartMeasurement provisions a new in-progress session and publishes the
// start_measurement command to the device's control topic. Returns the new
// session id. The session row is written first; a publish failure leaves an
// idle in-progress session behind, which is harmless and retryable.
func (p *Publisher) StartMeasurement(ctx context.Context, deviceID, patientID string) (string, error) {
	if deviceID == "" {
		return "", errors.WrapInvalid(errors.ErrMissingConfig, "control", "StartMeasurement", "device id")
	}

	sessionID := uuid.NewString()
	now := p.now().UTC()

	newSession := &store.Session{
		ID:        sessionID,
		PatientID: patientID,
		DeviceID:  deviceID,
		Status:    store.StatusInProgress,
		CreatedAt: now,
	}
	if err := p.sessions.CreateSession(ctx, newSession); err != nil {
		return "", errors.Wrap(err, "control", "StartMeasurement", "create session")
	}

	command := codec.NewStartCommand(sessionID, now)
	payload, err := command.Encode()
	if err != nil {
		return "", errors.Wrap(err, "control", "StartMeasurement", "encode command")
	}

	controlTopic := topic.ControlTopic(deviceID)
	if err := p.transport.Publish(controlTopic, controlQoS, payload); err != nil {
		return "", errors.WrapTransient(err, "control", "StartMeasurement", controlTopic)
	}

	p.logger.Info("Started measurement session",
		"session_id", sessionID,
		"device_id", deviceID,
		"topic", controlTopic)
	return sessionID, nil
}
