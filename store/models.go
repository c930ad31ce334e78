package store

import "time"

// SessionStatus is the lifecycle state of a measurement session.
type SessionStatus string

const (
	// StatusInProgress is the initial state of a session
	StatusInProgress SessionStatus = "in_progress"
	// StatusCompleted is the terminal state; no transition leaves it
	StatusCompleted SessionStatus = "completed"
)

// Session is one measurement episode tied to a patient/device.
type Session struct {
	ID        string // UUID, immutable once assigned
	PatientID string // optional owning patient reference
	DeviceID  string // optional owning device reference
	Status    SessionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Completed reports whether the session is in its terminal state.
func (s *Session) Completed() bool {
	return s.Status == StatusCompleted
}

// Reading is one persisted spectral point. Ordering within a session is by
// wavelength, not arrival order.
type Reading struct {
	ID         int64
	SessionID  string
	Wavelength float64
	Intensity  float64
	CreatedAt  time.Time
}

// Device is a registered measurement instrument. The ingestion core only
// reads the active flag; registration is administrative.
type Device struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
