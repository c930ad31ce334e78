package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/spectrad/errors"
)

func TestClassifyMeasurement(t *testing.T) {
	route, err := Classify("dev1/abc-123/measurements")
	require.NoError(t, err)
	assert.Equal(t, "dev1", route.DeviceID)
	assert.Equal(t, "abc-123", route.SessionID)
	assert.Equal(t, ClassMeasurement, route.Class)
}

func TestClassifyControl(t *testing.T) {
	route, err := Classify("device/dev1/control")
	require.NoError(t, err)
	assert.Equal(t, "dev1", route.DeviceID)
	assert.Empty(t, route.SessionID)
	assert.Equal(t, ClassControl, route.Class)
}

func TestClassifyUnrecognized(t *testing.T) {
	tests := []struct {
		name  string
		topic string
	}{
		{"wrong suffix", "dev1/abc-123/other"},
		{"two segments", "dev1/measurements"},
		{"four segments", "dev1/abc-123/measurements/extra"},
		{"empty", ""},
		{"empty device", "/abc-123/measurements"},
		{"empty session", "dev1//measurements"},
		{"control without device", "device//control"},
		{"bare word", "measurements"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.topic)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrUnrecognizedTopic))
		})
	}
}

func TestBuilders(t *testing.T) {
	assert.Equal(t, "+/+/measurements", MeasurementPattern())
	assert.Equal(t, "dev1/abc-123/measurements", MeasurementTopic("dev1", "abc-123"))
	assert.Equal(t, "device/dev1/control", ControlTopic("dev1"))
}

func TestBuildersRoundTrip(t *testing.T) {
	route, err := Classify(MeasurementTopic("spectro-07", "f00d"))
	require.NoError(t, err)
	assert.Equal(t, "spectro-07", route.DeviceID)
	assert.Equal(t, "f00d", route.SessionID)

	route, err = Classify(ControlTopic("spectro-07"))
	require.NoError(t, err)
	assert.Equal(t, "spectro-07", route.DeviceID)
	assert.Equal(t, ClassControl, route.Class)
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "measurement", ClassMeasurement.String())
	assert.Equal(t, "control", ClassControl.String())
	assert.Equal(t, "unknown", Class(9).String())
}
