package codec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/spectrad/errors"
)

func TestParseReadingValid(t *testing.T) {
	r, err := ParseReading([]byte(`{"wavelength": 532.0, "intensity": 0.87}`))
	require.NoError(t, err)
	assert.Equal(t, 532.0, r.Wavelength)
	assert.Equal(t, 0.87, r.Intensity)
}

func TestParseReadingOptionalHints(t *testing.T) {
	r, err := ParseReading([]byte(`{"wavelength": 1, "intensity": 2, "device_id": "dev1", "patient_id": "PID000042"}`))
	require.NoError(t, err)
	assert.Equal(t, "dev1", r.DeviceID)
	assert.Equal(t, "PID000042", r.PatientID)
}

func TestParseReadingInvalidField(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"string wavelength", `{"wavelength": "n/a", "intensity": 0.87}`},
		{"empty object", `{}`},
		{"missing intensity", `{"wavelength": 532.0}`},
		{"null intensity", `{"wavelength": 532.0, "intensity": null}`},
		{"boolean wavelength", `{"wavelength": true, "intensity": 0.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReading([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidField), "want ErrInvalidField, got %v", err)
		})
	}
}

func TestParseReadingMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `this is not json`},
		{"truncated", `{"wavelength": 53`},
		{"array", `[532.0, 0.87]`},
		{"bare number", `42`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReading([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrMalformedPayload), "want ErrMalformedPayload, got %v", err)
		})
	}
}

func TestParseReadingQuantizes(t *testing.T) {
	r, err := ParseReading([]byte(`{"wavelength": 532.00000049, "intensity": 0.8700004999}`))
	require.NoError(t, err)
	assert.Equal(t, 532.0, r.Wavelength)
	assert.Equal(t, 0.87, r.Intensity)

	// Round half away from zero at the 6th decimal place.
	r, err = ParseReading([]byte(`{"wavelength": 532.00000051, "intensity": 0.87000051}`))
	require.NoError(t, err)
	assert.Equal(t, 532.000001, r.Wavelength)
	assert.Equal(t, 0.870001, r.Intensity)
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, 1.5, Quantize(1.5))
	assert.Equal(t, 0.000001, Quantize(0.0000014))
	assert.Equal(t, 0.000002, Quantize(0.0000015))
	assert.Equal(t, -0.000002, Quantize(-0.0000015))
	assert.Equal(t, 0.0, Quantize(0.0000004))
}

func TestSessionUpdateEncode(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	event := NewSessionUpdate("b7f9c0de-1111-2222-3333-444455556666", "completed", 1, at)

	data, err := event.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "session_update", decoded["type"])
	assert.Equal(t, "b7f9c0de-1111-2222-3333-444455556666", decoded["session_id"])
	assert.Equal(t, "completed", decoded["status"])
	assert.Equal(t, float64(1), decoded["point_count"])
	assert.Equal(t, "2026-03-14T09:26:53Z", decoded["last_updated"])
}

func TestStartCommandEncode(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	cmd := NewStartCommand("b7f9c0de-1111-2222-3333-444455556666", at)

	data, err := cmd.Encode()
	require.NoError(t, err)

	var decoded StartCommand
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "start_measurement", decoded.Command)
	assert.Equal(t, "2026-03-14T09:00:00Z", decoded.Timestamp)
	assert.Equal(t, "b7f9c0de-1111-2222-3333-444455556666", decoded.SessionID)
}
