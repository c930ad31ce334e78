package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"store unavailable", ErrStoreUnavailable, true},
		{"connection lost", ErrConnectionLost, true},
		{"notification failed", ErrNotificationFailed, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"wrapped transient", WrapTransient(fmt.Errorf("boom"), "store", "ApplyReading", "persist"), true},
		{"wrapped invalid", WrapInvalid(fmt.Errorf("boom"), "codec", "ParseReading", "decode"), false},
		{"malformed payload", ErrMalformedPayload, false},
		{"message pattern", fmt.Errorf("dial tcp: connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrMalformedPayload))
	assert.True(t, IsInvalid(ErrInvalidField))
	assert.True(t, IsInvalid(ErrUnrecognizedTopic))
	assert.True(t, IsInvalid(WrapInvalid(fmt.Errorf("bad"), "topic", "Classify", "parse")))
	assert.False(t, IsInvalid(ErrStoreUnavailable))
	assert.False(t, IsInvalid(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(ErrMissingConfig))
	assert.True(t, IsFatal(WrapFatal(fmt.Errorf("corrupt"), "store", "Open", "migrate")))
	assert.False(t, IsFatal(ErrConnectionLost))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorFatal, Classify(ErrInvalidConfig))
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidField))
	assert.Equal(t, ErrorTransient, Classify(ErrStoreUnavailable))
	assert.Equal(t, ErrorTransient, Classify(fmt.Errorf("something else")))
}

func TestWrapPreservesChain(t *testing.T) {
	base := ErrUnknownSession
	wrapped := Wrap(base, "session", "OnReadingArrival", "resolve session")
	require.Error(t, wrapped)
	assert.True(t, Is(wrapped, ErrUnknownSession))
	assert.Contains(t, wrapped.Error(), "session.OnReadingArrival")

	assert.NoError(t, Wrap(nil, "a", "b", "c"))
	assert.NoError(t, WrapTransient(nil, "a", "b", "c"))
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	wrapped := WrapTransient(ErrStoreUnavailable, "store", "ApplyReading", "begin tx")

	var ce *ClassifiedError
	require.True(t, As(wrapped, &ce))
	assert.Equal(t, ErrorTransient, ce.Class)
	assert.Equal(t, "store", ce.Component)
	assert.True(t, Is(wrapped, ErrStoreUnavailable))
}
