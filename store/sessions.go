package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/c360/spectrad/errors"
)

const sessionColumns = "session_id, patient_id, device_id, status, created_at, updated_at"

// CreateSession inserts a new session record. ID must be set; status
// defaults to in_progress when empty.
func (s *Store) CreateSession(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return errors.WrapInvalid(errors.New("session id is required"), "store", "CreateSession", "validate session")
	}

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = StatusInProgress
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (session_id, patient_id, device_id, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID,
		nullableString(session.PatientID),
		nullableString(session.DeviceID),
		string(session.Status),
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	if err != nil {
		return storeErr(err, "CreateSession", "insert session")
	}
	return nil
}

// GetSession fetches a session by identifier. Returns errors.ErrUnknownSession
// when no record exists.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(errors.ErrUnknownSession, "store", "GetSession", sessionID)
	}
	if err != nil {
		return nil, storeErr(err, "GetSession", "query session")
	}
	return session, nil
}

// UpdateSessionStatus sets the session status and touches updated_at.
// The guard clause refuses to move a completed session anywhere; completed
// is terminal.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, status SessionStatus) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET status = ?, updated_at = ?
         WHERE session_id = ? AND status != ?`,
		string(status),
		formatTime(time.Now().UTC()),
		sessionID,
		string(StatusCompleted),
	)
	if err != nil {
		return storeErr(err, "UpdateSessionStatus", "update session")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr(err, "UpdateSessionStatus", "rows affected")
	}
	if affected == 0 {
		// Either the session does not exist or it is already terminal.
		if _, getErr := s.GetSession(ctx, sessionID); getErr != nil {
			return getErr
		}
		return errors.Wrap(errors.ErrSessionCompleted, "store", "UpdateSessionStatus", sessionID)
	}
	return nil
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id         string
		patientID  sql.NullString
		deviceID   sql.NullString
		statusStr  string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &patientID, &deviceID, &statusStr, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	session := &Session{
		ID:        id,
		PatientID: patientID.String,
		DeviceID:  deviceID.String,
		Status:    SessionStatus(statusStr),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		session.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		session.UpdatedAt = updated
	}
	return session, nil
}
