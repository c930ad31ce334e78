// Package session implements the measurement session state machine. A
// session models a single-shot device reading: the first confirmed reading,
// new or duplicate, closes it. Completed is terminal.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360/spectrad/codec"
	"github.com/c360/spectrad/errors"
	"github.com/c360/spectrad/store"
)

// OutcomeKind is the closed set of results a reading arrival can produce.
type OutcomeKind int

const (
	// OutcomeAccepted means the reading was persisted and the session completed
	OutcomeAccepted OutcomeKind = iota
	// OutcomeDuplicate means the reading already existed; the session may
	// still have been completed by this arrival
	OutcomeDuplicate
	// OutcomeAlreadyCompleted means the session was terminal before this
	// arrival; nothing was persisted
	OutcomeAlreadyCompleted
	// OutcomeUnknownSession means no session record matched the topic
	OutcomeUnknownSession
)

// String returns the string representation of the outcome kind
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeAlreadyCompleted:
		return "already_completed"
	case OutcomeUnknownSession:
		return "unknown_session"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one reading arrival, consumed by the
// ingestion coordinator via exhaustive switching on Kind.
type Outcome struct {
	Kind         OutcomeKind
	Session      store.Session // zero value for OutcomeUnknownSession
	PointCount   int
	StateChanged bool // persisted state changed; gates notification emission
	AutoCreated  bool // the session was lazily created by this arrival
}

// Policy holds the explicit policy switches of the state machine.
type Policy struct {
	// AutoCreateSessions lazily creates a session when a data message
	// references an unknown session_id. Off by default; the strict policy
	// treats unknown sessions as drops.
	AutoCreateSessions bool
}

// Engine drives session lifecycle transitions triggered by reading arrival.
// It is the only mutator of session state.
type Engine struct {
	store  *store.Store
	policy Policy
	logger *slog.Logger
}

// NewEngine creates a session engine over the given store.
func NewEngine(s *store.Store, policy Policy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default().With("component", "session-engine")
	}
	return &Engine{store: s, policy: policy, logger: logger}
}

// OnReadingArrival resolves the session, applies the dedup-safe persistence
// and completion transition atomically, and reports the outcome. A non-nil
// error means the store was unavailable and the message should be dropped
// without retry; partial writes cannot occur.
func (e *Engine) OnReadingArrival(ctx context.Context, sessionID string, reading codec.Reading) (Outcome, error) {
	autoCreated := false
	result, err := e.store.ApplyReading(ctx, sessionID, reading.Wavelength, reading.Intensity)
	if errors.Is(err, errors.ErrUnknownSession) {
		if !e.policy.AutoCreateSessions {
			return Outcome{Kind: OutcomeUnknownSession}, nil
		}
		if createErr := e.createSession(ctx, sessionID, reading); createErr != nil {
			if errors.Is(createErr, errors.ErrUnknownSession) {
				// Not a creatable identity (non-UUID); strict drop applies.
				return Outcome{Kind: OutcomeUnknownSession}, nil
			}
			return Outcome{}, createErr
		}
		autoCreated = true
		result, err = e.store.ApplyReading(ctx, sessionID, reading.Wavelength, reading.Intensity)
		if errors.Is(err, errors.ErrUnknownSession) {
			// Session vanished between create and apply; treat as unknown.
			return Outcome{Kind: OutcomeUnknownSession}, nil
		}
	}
	if err != nil {
		return Outcome{}, errors.Wrap(err, "session", "OnReadingArrival", "apply reading")
	}

	outcome := Outcome{
		Session:      result.Session,
		PointCount:   result.PointCount,
		StateChanged: result.StateChanged(),
		AutoCreated:  autoCreated,
	}
	switch {
	case result.Inserted:
		outcome.Kind = OutcomeAccepted
	case result.Duplicate:
		outcome.Kind = OutcomeDuplicate
	default:
		outcome.Kind = OutcomeAlreadyCompleted
	}
	return outcome, nil
}

// createSession lazily registers a session referenced by an inbound reading.
// Only reached under the explicit AutoCreateSessions policy flag.
func (e *Engine) createSession(ctx context.Context, sessionID string, reading codec.Reading) error {
	if _, parseErr := uuid.Parse(sessionID); parseErr != nil {
		e.logger.Warn("Refusing to auto-create session with non-UUID id",
			"session_id", sessionID)
		return errors.Wrap(errors.ErrUnknownSession, "session", "createSession", sessionID)
	}

	newSession := &store.Session{
		ID:        sessionID,
		PatientID: reading.PatientID,
		DeviceID:  reading.DeviceID,
		Status:    store.StatusInProgress,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.CreateSession(ctx, newSession); err != nil {
		// A concurrent ingester may have created it first; that is fine.
		if _, getErr := e.store.GetSession(ctx, sessionID); getErr != nil {
			return errors.Wrap(err, "session", "createSession", "auto-create")
		}
		return nil
	}
	e.logger.Info("Auto-created session from inbound reading",
		"session_id", sessionID,
		"device_id", reading.DeviceID,
		"patient_id", reading.PatientID)
	return nil
}
