package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"
)

// GetDevice fetches a device by identifier. Returns (nil, nil) when the
// device is not registered; device registration is administrative and an
// unregistered device is not an error at this layer.
func (s *Store) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT device_id, name, active, created_at, updated_at FROM devices WHERE device_id = ?`,
		deviceID,
	)

	var (
		d          Device
		active     int
		createdRaw string
		updatedRaw string
	)
	err := row.Scan(&d.ID, &d.Name, &active, &createdRaw, &updatedRaw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err, "GetDevice", "query device")
	}

	d.Active = active != 0
	if created, err := parseTimeString(createdRaw); err == nil {
		d.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		d.UpdatedAt = updated
	}
	return &d, nil
}

// UpsertDevice creates or updates a device registration.
func (s *Store) UpsertDevice(ctx context.Context, device *Device) error {
	now := formatTime(time.Now().UTC())
	active := 0
	if device.Active {
		active = 1
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO devices (device_id, name, active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(device_id) DO UPDATE SET name = excluded.name,
             active = excluded.active, updated_at = excluded.updated_at`,
		device.ID, device.Name, active, now, now,
	)
	if err != nil {
		return storeErr(err, "UpsertDevice", "upsert device")
	}
	return nil
}
