package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/spectrad/codec"
	"github.com/c360/spectrad/errors"
	"github.com/c360/spectrad/store"
)

type fakeBus struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeBus) Publish(_ context.Context, subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "session.0b9af6a3-74a4-4a51-9c0b-4f6de8bfb5b9",
		Subject("0b9af6a3-74a4-4a51-9c0b-4f6de8bfb5b9"))
}

func TestPublishSessionUpdate(t *testing.T) {
	bus := &fakeBus{}
	publisher := NewPublisher(bus, nil)

	updated := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	session := store.Session{ID: "s1", Status: store.StatusCompleted, UpdatedAt: updated}

	require.NoError(t, publisher.PublishSessionUpdate(context.Background(), session, 1))

	require.Len(t, bus.subjects, 1)
	assert.Equal(t, "session.s1", bus.subjects[0])

	var event codec.SessionUpdate
	require.NoError(t, json.Unmarshal(bus.payloads[0], &event))
	assert.Equal(t, "session_update", event.Type)
	assert.Equal(t, "s1", event.SessionID)
	assert.Equal(t, "completed", event.Status)
	assert.Equal(t, 1, event.PointCount)
	assert.Equal(t, "2026-03-14T10:30:00Z", event.LastUpdated)
}

func TestPublishSessionUpdateBusFailure(t *testing.T) {
	bus := &fakeBus{err: stderrors.New("no responders")}
	publisher := NewPublisher(bus, nil)

	err := publisher.PublishSessionUpdate(context.Background(),
		store.Session{ID: "s1", Status: store.StatusCompleted}, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotificationFailed))
	assert.True(t, errors.IsTransient(err))
}
