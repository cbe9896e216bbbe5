package db

import (
	"fmt"
)

// migrate brings indexes created by older releases up to the current schema
func (db *DB) migrate() error {
	// Migration 1: session notes became searchable metadata
	if err := db.addColumnIfMissing("sessions", "notes", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("migration 001: %w", err)
	}

	// Migration 2: code changes index their file path
	if err := db.addColumnIfMissing("actions", "file", "TEXT"); err != nil {
		return fmt.Errorf("migration 002: %w", err)
	}
	if _, err := db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_actions_file ON actions(file)`); err != nil {
		return fmt.Errorf("migration 002: %w", err)
	}

	// Migration 3: record the on-disk path so removed records can be pruned
	if err := db.addColumnIfMissing("sessions", "file_path", "TEXT"); err != nil {
		return fmt.Errorf("migration 003: %w", err)
	}

	return nil
}

func (db *DB) hasColumn(table, column string) (bool, error) {
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info(?)
		WHERE name = ?
	`, table, column).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (db *DB) addColumnIfMissing(table, column, decl string) error {
	ok, err := db.hasColumn(table, column)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
	if err != nil {
		return fmt.Errorf("add %s.%s: %w", table, column, err)
	}
	return nil
}
