// Package topic maps transport topic strings to (device, session) identity
// and message class, and builds the topics the service publishes on.
//
// Data topics are exactly three slash-delimited segments with a literal
// trailing "measurements": device_id/session_id/measurements. Control topics
// are device/<device_id>/control. Anything else is unrecognized; a malformed
// topic string never becomes valid on redelivery, so callers drop and log.
package topic

import (
	"strings"

	"github.com/c360/spectrad/errors"
)

// Class identifies the kind of message a topic carries.
type Class int

const (
	// ClassMeasurement carries a spectral reading for a session
	ClassMeasurement Class = iota
	// ClassControl carries a command directed at a device
	ClassControl
)

// String returns the string representation of the message class
func (c Class) String() string {
	switch c {
	case ClassMeasurement:
		return "measurement"
	case ClassControl:
		return "control"
	default:
		return "unknown"
	}
}

const (
	measurementSuffix = "measurements"
	controlPrefix     = "device"
	controlSuffix     = "control"
)

// Route is the identity extracted from a topic string.
type Route struct {
	DeviceID  string
	SessionID string // empty for control topics
	Class     Class
}

// Classify parses a topic string into a Route. Pure function over the topic
// string only; returns errors.ErrUnrecognizedTopic for anything outside the
// two supported shapes.
func Classify(topic string) (Route, error) {
	segments := strings.Split(topic, "/")
	if len(segments) != 3 {
		return Route{}, errors.Wrap(errors.ErrUnrecognizedTopic, "topic", "Classify", topic)
	}

	switch {
	case segments[2] == measurementSuffix && segments[0] != "" && segments[1] != "":
		return Route{
			DeviceID:  segments[0],
			SessionID: segments[1],
			Class:     ClassMeasurement,
		}, nil
	case segments[0] == controlPrefix && segments[2] == controlSuffix && segments[1] != "":
		return Route{
			DeviceID: segments[1],
			Class:    ClassControl,
		}, nil
	default:
		return Route{}, errors.Wrap(errors.ErrUnrecognizedTopic, "topic", "Classify", topic)
	}
}

// MeasurementPattern returns the wildcard subscription pattern covering all
// device data topics.
func MeasurementPattern() string {
	return "+/+/" + measurementSuffix
}

// MeasurementTopic builds the data topic for one device and session.
func MeasurementTopic(deviceID, sessionID string) string {
	return deviceID + "/" + sessionID + "/" + measurementSuffix
}

// ControlTopic builds the control topic for a device.
func ControlTopic(deviceID string) string {
	return controlPrefix + "/" + deviceID + "/" + controlSuffix
}
