package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/c360/spectrad/errors"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases with a different version are rejected rather
// than silently migrated.
const schemaVersion = 1

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return errors.WrapTransient(err, "store", "initSchema", "check schema_version table")
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return errors.WrapTransient(err, "store", "initSchema", "read schema version")
	}

	if version != schemaVersion {
		return errors.WrapFatal(
			fmt.Errorf("database has schema version %d, expected %d", version, schemaVersion),
			"store", "initSchema", "schema version check")
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapTransient(err, "store", "createSchema", "begin schema tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return errors.WrapFatal(err, "store", "createSchema", "create schema")
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return errors.WrapFatal(err, "store", "createSchema", "record schema version")
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapTransient(err, "store", "createSchema", "commit schema")
	}
	return nil
}
