package store

import (
	"context"
	"time"
)

// ReadingExists reports whether a reading with the exact quantized
// wavelength and intensity is already recorded under the session. Read-only;
// this is the deduplication guard's query.
func (s *Store) ReadingExists(ctx context.Context, sessionID string, wavelength, intensity float64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM readings WHERE session_id = ? AND wavelength = ? AND intensity = ?`,
		sessionID, wavelength, intensity,
	).Scan(&count)
	if err != nil {
		return false, storeErr(err, "ReadingExists", "query reading")
	}
	return count > 0, nil
}

// CreateReading inserts a reading, treating a unique-index conflict as the
// duplicate signal. Returns true when a row was actually inserted.
func (s *Store) CreateReading(ctx context.Context, sessionID string, wavelength, intensity float64) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO readings (session_id, wavelength, intensity, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(session_id, wavelength, intensity) DO NOTHING`,
		sessionID, wavelength, intensity, formatTime(time.Now().UTC()),
	)
	if err != nil {
		return false, storeErr(err, "CreateReading", "insert reading")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr(err, "CreateReading", "rows affected")
	}
	return affected > 0, nil
}

// ListReadings returns all readings for a session ordered by wavelength.
func (s *Store) ListReadings(ctx context.Context, sessionID string) ([]*Reading, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, session_id, wavelength, intensity, created_at
         FROM readings WHERE session_id = ? ORDER BY wavelength`,
		sessionID,
	)
	if err != nil {
		return nil, storeErr(err, "ListReadings", "query readings")
	}
	defer rows.Close()

	var readings []*Reading
	for rows.Next() {
		var (
			r          Reading
			createdRaw string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Wavelength, &r.Intensity, &createdRaw); err != nil {
			return nil, storeErr(err, "ListReadings", "scan reading")
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			r.CreatedAt = created
		}
		readings = append(readings, &r)
	}
	return readings, storeErr(rows.Err(), "ListReadings", "iterate readings")
}

// CountReadings returns the number of stored readings for a session.
func (s *Store) CountReadings(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM readings WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, storeErr(err, "CountReadings", "count readings")
	}
	return count, nil
}
