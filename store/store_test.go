package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/spectrad/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestSession(t *testing.T, s *Store, id string) *Session {
	t.Helper()
	session := &Session{ID: id, DeviceID: "dev1"}
	require.NoError(t, s.CreateSession(context.Background(), session))
	return session
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingConfig))
}

func TestOpenIsIdempotentOnExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	s1, err := Open(path)
	require.NoError(t, err)
	newTestSession(t, s1, "s-reopen")
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	session, err := s2.GetSession(context.Background(), "s-reopen")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, session.Status)
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := &Session{ID: "s1", PatientID: "PID000001", DeviceID: "dev1"}
	require.NoError(t, s.CreateSession(ctx, created))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "PID000001", got.PatientID)
	assert.Equal(t, "dev1", got.DeviceID)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetSessionUnknown(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSession(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownSession))
}

func TestUpdateSessionStatusTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestSession(t, s, "s1")

	require.NoError(t, s.UpdateSessionStatus(ctx, "s1", StatusCompleted))

	// Completed is terminal: a second transition attempt is refused.
	err := s.UpdateSessionStatus(ctx, "s1", StatusInProgress)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionCompleted))

	err = s.UpdateSessionStatus(ctx, "missing", StatusCompleted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownSession))
}

func TestCreateReadingDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestSession(t, s, "s1")

	inserted, err := s.CreateReading(ctx, "s1", 532.0, 0.87)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.CreateReading(ctx, "s1", 532.0, 0.87)
	require.NoError(t, err)
	assert.False(t, inserted, "conflicting insert must be reported as duplicate")

	exists, err := s.ReadingExists(ctx, "s1", 532.0, 0.87)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ReadingExists(ctx, "s1", 532.0, 0.88)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListReadingsOrderedByWavelength(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestSession(t, s, "s1")

	for _, w := range []float64{700.0, 400.0, 550.0} {
		_, err := s.CreateReading(ctx, "s1", w, 0.5)
		require.NoError(t, err)
	}

	readings, err := s.ListReadings(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, 400.0, readings[0].Wavelength)
	assert.Equal(t, 550.0, readings[1].Wavelength)
	assert.Equal(t, 700.0, readings[2].Wavelength)

	count, err := s.CountReadings(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDeviceUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetDevice(ctx, "dev1")
	require.NoError(t, err)
	assert.Nil(t, got, "unregistered device is not an error")

	require.NoError(t, s.UpsertDevice(ctx, &Device{ID: "dev1", Name: "Spectrometer A", Active: true}))
	got, err = s.GetDevice(ctx, "dev1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Active)

	require.NoError(t, s.UpsertDevice(ctx, &Device{ID: "dev1", Name: "Spectrometer A", Active: false}))
	got, err = s.GetDevice(ctx, "dev1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Active)
}

func TestApplyReadingAcceptsAndCompletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestSession(t, s, "s1")

	result, err := s.ApplyReading(ctx, "s1", 532.0, 0.87)
	require.NoError(t, err)
	assert.True(t, result.Inserted)
	assert.False(t, result.Duplicate)
	assert.True(t, result.Completed)
	assert.True(t, result.StateChanged())
	assert.Equal(t, 1, result.PointCount)
	assert.Equal(t, StatusCompleted, result.Session.Status)

	session, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, session.Status)
}

func TestApplyReadingUnknownSession(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ApplyReading(context.Background(), "missing", 532.0, 0.87)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownSession))

	// No store mutation happened.
	count, err := s.CountReadings(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestApplyReadingCompletedSessionIsUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestSession(t, s, "s1")

	first, err := s.ApplyReading(ctx, "s1", 532.0, 0.87)
	require.NoError(t, err)
	require.True(t, first.Completed)

	redelivered, err := s.ApplyReading(ctx, "s1", 532.0, 0.87)
	require.NoError(t, err)
	assert.False(t, redelivered.Inserted)
	assert.False(t, redelivered.Completed)
	assert.False(t, redelivered.StateChanged())
	assert.Equal(t, StatusCompleted, redelivered.Session.Status)
	assert.Equal(t, 1, redelivered.PointCount)

	count, err := s.CountReadings(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "redelivery must not add a row")
}

func TestApplyReadingDuplicateCompletesStalledSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestSession(t, s, "s1")

	// A reading stored without a completion transition, e.g. written by an
	// older ingester before it crashed.
	inserted, err := s.CreateReading(ctx, "s1", 532.0, 0.87)
	require.NoError(t, err)
	require.True(t, inserted)

	result, err := s.ApplyReading(ctx, "s1", 532.0, 0.87)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.False(t, result.Inserted)
	assert.True(t, result.Completed, "duplicate arrival must still complete an in-progress session")
	assert.True(t, result.StateChanged())
	assert.Equal(t, 1, result.PointCount)
}

func TestApplyReadingConcurrentDeliveries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestSession(t, s, "s1")

	const workers = 8
	results := make([]ApplyResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.ApplyReading(ctx, "s1", 532.0, 0.87)
		}(i)
	}
	wg.Wait()

	inserts, completions := 0, 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if results[i].Inserted {
			inserts++
		}
		if results[i].Completed {
			completions++
		}
	}
	assert.Equal(t, 1, inserts, "exactly one delivery may insert the reading")
	assert.Equal(t, 1, completions, "exactly one delivery may complete the session")

	count, err := s.CountReadings(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	session, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, session.Status)
}
