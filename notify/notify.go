// Package notify publishes session update events to the fan-out bus.
// Publishing is best effort: a viewer channel with zero subscribers is a
// no-op, and a failed publish is logged and never surfaces to the caller's
// ingestion path.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/spectrad/codec"
	"github.com/c360/spectrad/errors"
	"github.com/c360/spectrad/store"
)

// Bus is the publishing side of the fan-out transport.
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// SubjectPrefix is the namespace for per-session viewer subjects.
const SubjectPrefix = "session."

// Subject returns the fan-out subject for one session's updates.
func Subject(sessionID string) string {
	return SubjectPrefix + sessionID
}

// Publisher emits session update events after a state-changing ingestion.
type Publisher struct {
	bus    Bus
	logger *slog.Logger
}

// NewPublisher creates a publisher over the given bus.
func NewPublisher(bus Bus, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default().With("component", "notify")
	}
	return &Publisher{bus: bus, logger: logger}
}

// PublishSessionUpdate encodes and publishes the update for the session the
// event belongs to. The returned error is informational; callers on the
// ingestion path must not treat it as a processing failure.
func (p *Publisher) PublishSessionUpdate(ctx context.Context, session store.Session, pointCount int) error {
	event := codec.NewSessionUpdate(session.ID, string(session.Status), pointCount, session.UpdatedAt)

	data, err := event.Encode()
	if err != nil {
		return errors.Wrap(
			fmt.Errorf("%w: %v", errors.ErrNotificationFailed, err),
			"notify", "PublishSessionUpdate", "encode event")
	}

	subject := Subject(session.ID)
	if err := p.bus.Publish(ctx, subject, data); err != nil {
		p.logger.Warn("Session update publish failed",
			"subject", subject,
			"session_id", session.ID,
			"error", err)
		return errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrNotificationFailed, err),
			"notify", "PublishSessionUpdate", subject)
	}

	p.logger.Debug("Published session update",
		"subject", subject,
		"status", session.Status,
		"point_count", pointCount)
	return nil
}
