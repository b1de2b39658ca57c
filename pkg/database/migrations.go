package database

import (
	"database/sql"
	"fmt"
)

// Migration is one unit of schema evolution. Migrations are compiled in
// so a deployment cannot drift from the binary that runs against it.
type Migration struct {
	Version     string
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     "001_initial_schema",
		Description: "classes, chat_messages and study_group_messages tables",
		SQL: `
CREATE TABLE IF NOT EXISTS classes (
    id               TEXT PRIMARY KEY,
    title            TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    host_id          TEXT NOT NULL,
    participants     TEXT NOT NULL DEFAULT '[]',
    start_time       DATETIME NOT NULL,
    end_time         DATETIME NOT NULL,
    duration         INTEGER NOT NULL DEFAULT 60,
    status           TEXT NOT NULL DEFAULT 'upcoming'
                     CHECK (status IN ('upcoming', 'ongoing', 'completed', 'cancelled')),
    max_participants INTEGER NOT NULL DEFAULT 50,
    level            TEXT NOT NULL DEFAULT 'beginner'
                     CHECK (level IN ('beginner', 'intermediate', 'advanced'))
);

CREATE INDEX IF NOT EXISTS idx_classes_start_status ON classes (start_time, status);

CREATE TABLE IF NOT EXISTS chat_messages (
    id          TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL,
    sender_id   TEXT NOT NULL,
    sender_name TEXT NOT NULL,
    content     TEXT NOT NULL,
    kind        TEXT NOT NULL DEFAULT 'text' CHECK (kind IN ('text', 'audio')),
    timestamp   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_session_time ON chat_messages (session_id, timestamp);

CREATE TABLE IF NOT EXISTS study_group_messages (
    id             TEXT PRIMARY KEY,
    study_group_id TEXT NOT NULL,
    sender_id      TEXT NOT NULL,
    content        TEXT NOT NULL,
    created_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_study_group_messages_group_time ON study_group_messages (study_group_id, created_at);
`,
	},
}

// MigrationManager applies pending migrations and tracks applied versions
// in a schema_migrations table.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a new migration manager.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// ApplyMigrations applies all migrations that have not yet been recorded.
// Each migration runs in its own transaction together with its version
// record, so a partial application cannot be recorded as complete.
func (m *MigrationManager) ApplyMigrations() error {
	if err := m.createMigrationTable(); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.apply(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
	}

	return nil
}

func (m *MigrationManager) createMigrationTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (m *MigrationManager) appliedVersions() (map[string]bool, error) {
	rows, err := m.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *MigrationManager) apply(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return fmt.Errorf("migration SQL failed: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, migration.Version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
