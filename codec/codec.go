// Package codec parses and encodes the wire payloads exchanged with devices
// and viewers: inbound spectral readings, outbound session_update events, and
// start_measurement control commands.
//
// Numeric fields are quantized to QuantizePrecision decimal places at parse
// time so the deduplication key is stable across float re-encodings between
// retransmissions. The precision is part of the wire contract.
package codec

import (
	"encoding/json"
	"math"
	"time"

	"github.com/c360/spectrad/errors"
)

// QuantizePrecision is the number of decimal places readings are rounded to
// before deduplication and persistence.
const QuantizePrecision = 6

const quantizeScale = 1e6

// Reading is a single parsed spectral point.
type Reading struct {
	Wavelength float64
	Intensity  float64

	// Optional identifying hints carried by some device firmware revisions.
	// Only consulted by the opt-in session auto-create policy.
	DeviceID  string
	PatientID string
}

// ParseReading decodes a raw measurement payload into a Reading.
//
// The payload must be a JSON object with wavelength and intensity coercible
// to finite numbers. Returns errors.ErrMalformedPayload when the bytes are
// not a well-formed JSON object, errors.ErrInvalidField when either field is
// missing, non-numeric, or non-finite. Pure function, no side effects.
func ParseReading(raw []byte) (Reading, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Reading{}, errors.Wrap(errors.ErrMalformedPayload, "codec", "ParseReading", "decode payload")
	}

	wavelength, err := numericField(fields, "wavelength")
	if err != nil {
		return Reading{}, err
	}
	intensity, err := numericField(fields, "intensity")
	if err != nil {
		return Reading{}, err
	}

	r := Reading{
		Wavelength: Quantize(wavelength),
		Intensity:  Quantize(intensity),
	}
	if v, ok := fields["device_id"].(string); ok {
		r.DeviceID = v
	}
	if v, ok := fields["patient_id"].(string); ok {
		r.PatientID = v
	}
	return r, nil
}

func numericField(fields map[string]any, name string) (float64, error) {
	v, ok := fields[name]
	if !ok {
		return 0, errors.Wrap(errors.ErrInvalidField, "codec", "ParseReading", name+" missing")
	}
	f, ok := v.(float64)
	if !ok {
		return 0, errors.Wrap(errors.ErrInvalidField, "codec", "ParseReading", name+" not numeric")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Wrap(errors.ErrInvalidField, "codec", "ParseReading", name+" not finite")
	}
	return f, nil
}

// Quantize rounds v to QuantizePrecision decimal places, half away from zero.
func Quantize(v float64) float64 {
	return math.Round(v*quantizeScale) / quantizeScale
}

// SessionUpdate is the event delivered to live viewers when a session's
// persisted state changes.
type SessionUpdate struct {
	Type        string `json:"type"` // always "session_update"
	SessionID   string `json:"session_id"`
	Status      string `json:"status"` // "in_progress" or "completed"
	PointCount  int    `json:"point_count"`
	LastUpdated string `json:"last_updated"` // RFC 3339
}

// NewSessionUpdate builds a SessionUpdate with the fixed type tag.
func NewSessionUpdate(sessionID, status string, pointCount int, lastUpdated time.Time) SessionUpdate {
	return SessionUpdate{
		Type:        "session_update",
		SessionID:   sessionID,
		Status:      status,
		PointCount:  pointCount,
		LastUpdated: lastUpdated.UTC().Format(time.RFC3339),
	}
}

// Encode serializes the event for the fan-out layer.
func (e SessionUpdate) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.WrapInvalid(err, "codec", "Encode", "marshal session update")
	}
	return data, nil
}

// StartCommand is the control payload instructing a device to begin a
// measurement session.
type StartCommand struct {
	Command   string `json:"command"` // always "start_measurement"
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
}

// NewStartCommand builds a start_measurement command for the given session.
func NewStartCommand(sessionID string, at time.Time) StartCommand {
	return StartCommand{
		Command:   "start_measurement",
		Timestamp: at.UTC().Format(time.RFC3339),
		SessionID: sessionID,
	}
}

// Encode serializes the command for the control topic.
func (c StartCommand) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, errors.WrapInvalid(err, "codec", "Encode", "marshal start command")
	}
	return data, nil
}
