package database

import (
	"database/sql"
	"fmt"

	"github.com/phuslu/log"
)

// schemaVersion reads PRAGMA user_version.
func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// migrate applies every migration newer than the file's user_version, in
// order, recording each one as it commits.
func migrate(conn *sql.DB) error {
	from, err := schemaVersion(conn)
	if err != nil {
		return err
	}
	if from >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= from {
			continue
		}
		log.Info().Int("version", m.Version).Str("description", m.Description).Msg("upgrading cache schema")
		if err := apply(conn, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(conn *sql.DB, m Migration) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w", m.Version, err)
	}
	// modernc/sqlite ignores user_version set inside the transaction; the
	// DDL is idempotent, so a crash before this line re-runs the step.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("migration %d: recording version: %w", m.Version, err)
	}
	return nil
}
