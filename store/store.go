// Package store provides persistent session, reading, and device storage
// backed by SQLite. It owns the atomic check-then-act sequence that keeps
// concurrent ingesters from double-inserting a reading or double-completing
// a session.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/c360/spectrad/errors"
)

// Store manages session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the session database and verifies the
// schema. WAL mode plus busy_timeout lets multiple ingester processes share
// the file; the unique reading index provides the cross-process dedup
// guarantee.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "store", "Open", "database path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapTransient(err, "store", "Open", "open sqlite db")
	}

	// A single pooled connection serializes this process's transactions,
	// which keeps read-then-write transactions from hitting SQLITE_BUSY on
	// lock upgrade. Cross-process writers are arbitrated by WAL plus the
	// unique reading index.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, errors.WrapTransient(execErr, "store", "Open", fmt.Sprintf("apply pragma %q", pragma))
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.WrapTransient(errors.ErrStoreUnavailable, "store", "Ping", err.Error())
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, stderrors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

// storeErr maps a driver error into the classified taxonomy. sql.ErrNoRows
// is the caller's business and passes through untouched.
func storeErr(err error, method, action string) error {
	if err == nil || stderrors.Is(err, sql.ErrNoRows) {
		return err
	}
	return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err), "store", method, action)
}
