package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/c360/spectrad/errors"
)

// ApplyResult reports what one reading arrival did to persisted state.
type ApplyResult struct {
	Session    Session // snapshot after the transaction
	Inserted   bool    // a new reading row was stored
	Duplicate  bool    // the reading already existed (insert conflicted)
	Completed  bool    // this call transitioned the session to completed
	PointCount int     // stored readings after the transaction
}

// StateChanged reports whether persisted state changed at all, which is what
// gates notification emission.
func (r ApplyResult) StateChanged() bool {
	return r.Inserted || r.Completed
}

// ApplyReading runs the dedup-check, reading insert, and completion
// transition as a single transaction, so a session is never marked completed
// with zero readings and a reading is never stored against a session whose
// transition silently failed.
//
// Semantics:
//   - unknown session: errors.ErrUnknownSession, nothing written
//   - completed session: no write, snapshot returned (terminal state holds)
//   - duplicate reading: no new row, but a still-in-progress session with at
//     least one stored reading is completed anyway; any confirmed reading is
//     evidence of device-side completion of the single-shot measurement
//   - new reading: row inserted and session completed
//
// The unique index on (session_id, wavelength, intensity) makes the insert
// race-safe across concurrent ingester processes; a conflicting insert is the
// duplicate signal, not an error.
func (s *Store) ApplyReading(ctx context.Context, sessionID string, wavelength, intensity float64) (ApplyResult, error) {
	var result ApplyResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, storeErr(err, "ApplyReading", "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return result, errors.Wrap(errors.ErrUnknownSession, "store", "ApplyReading", sessionID)
	}
	if err != nil {
		return result, storeErr(err, "ApplyReading", "resolve session")
	}
	result.Session = *session

	if session.Completed() {
		// Terminal state: the reading is not persisted and nothing changes.
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM readings WHERE session_id = ?`, sessionID,
		).Scan(&result.PointCount); err != nil {
			return result, storeErr(err, "ApplyReading", "count readings")
		}
		if err := tx.Commit(); err != nil {
			return result, storeErr(err, "ApplyReading", "commit")
		}
		return result, nil
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO readings (session_id, wavelength, intensity, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(session_id, wavelength, intensity) DO NOTHING`,
		sessionID, wavelength, intensity, formatTime(time.Now().UTC()),
	)
	if err != nil {
		return result, storeErr(err, "ApplyReading", "insert reading")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return result, storeErr(err, "ApplyReading", "rows affected")
	}
	result.Inserted = affected > 0
	result.Duplicate = !result.Inserted

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM readings WHERE session_id = ?`, sessionID,
	).Scan(&result.PointCount); err != nil {
		return result, storeErr(err, "ApplyReading", "count readings")
	}

	// First confirmed reading, new or duplicate, closes the session.
	if result.PointCount >= 1 {
		now := time.Now().UTC()
		upd, err := tx.ExecContext(ctx,
			`UPDATE sessions SET status = ?, updated_at = ?
             WHERE session_id = ? AND status = ?`,
			string(StatusCompleted), formatTime(now), sessionID, string(StatusInProgress),
		)
		if err != nil {
			return result, storeErr(err, "ApplyReading", "complete session")
		}
		changed, err := upd.RowsAffected()
		if err != nil {
			return result, storeErr(err, "ApplyReading", "rows affected")
		}
		if changed > 0 {
			result.Completed = true
			result.Session.Status = StatusCompleted
			result.Session.UpdatedAt = now
		}
	}

	if err := tx.Commit(); err != nil {
		return result, storeErr(err, "ApplyReading", "commit")
	}
	return result, nil
}
