package store

import "fmt"

// schema holds the migrations in order. Applying schema[i] moves the
// database to user_version i+1. Only ever append.
var schema = [][]string{
	// 1: sessions, blink events, action bindings and settings.
	{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			frames INTEGER NOT NULL DEFAULT 0
		)`,

		// Times are milliseconds since the session started.
		`CREATE TABLE IF NOT EXISTS blink_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			eye TEXT NOT NULL CHECK(eye IN ('left', 'right')),
			started_ms INTEGER NOT NULL,
			ended_ms INTEGER NOT NULL,
			detections INTEGER NOT NULL DEFAULT 0
		)`,

		// TRIGGER is a keyword, hence eye_trigger.
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			eye_trigger TEXT NOT NULL CHECK(eye_trigger IN ('left', 'right', 'both')),
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_blink_events_session_id ON blink_events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_eye_trigger ON actions(eye_trigger)`,
	},

	// 2: session listing is newest first.
	{
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	},
}

// SchemaVersion returns the migration level of the database.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow(`PRAGMA user_version`).Scan(&v)
	return v, err
}

// runMigrations applies every migration newer than the database, each in
// its own transaction.
func (s *Store) runMigrations() error {
	current, err := s.SchemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > len(schema) {
		return fmt.Errorf("database schema v%d is newer than supported v%d", current, len(schema))
	}

	for v := current; v < len(schema); v++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range schema[v] {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d: %w", v+1, err)
			}
		}
		// PRAGMA does not take bound parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
	}

	return nil
}
