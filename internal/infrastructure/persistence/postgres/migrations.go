package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: ROSTER
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS teachers (
    teacher_id VARCHAR(64) PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL DEFAULT '',
    email VARCHAR(255) NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS students (
    student_id VARCHAR(64) PRIMARY KEY,
    class_id VARCHAR(64) NOT NULL,
    display_name VARCHAR(100) NOT NULL DEFAULT '',
    email VARCHAR(255) NOT NULL DEFAULT '',
    parent_email VARCHAR(255) NOT NULL DEFAULT '',
    current_points INTEGER NOT NULL DEFAULT 0,
    total_points INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT valid_total_points CHECK (total_points >= 0)
);

CREATE INDEX IF NOT EXISTS idx_students_class ON students(class_id);
`

const migration001Down = `
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS teachers;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS quests (
    quest_id VARCHAR(64) PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    points INTEGER NOT NULL DEFAULT 0,
    type VARCHAR(50) NOT NULL,
    total_amount_to_complete INTEGER NOT NULL,

    CONSTRAINT valid_quest_points CHECK (points >= 0),
    CONSTRAINT valid_quest_target CHECK (total_amount_to_complete > 0)
);

CREATE INDEX IF NOT EXISTS idx_quests_type ON quests(type);

CREATE TABLE IF NOT EXISTS tasks (
    task_id VARCHAR(64) PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    points INTEGER NOT NULL DEFAULT 0,
    quest_contribution_amount_on_complete INTEGER NOT NULL DEFAULT 0,
    associated_quest_id VARCHAR(64) NOT NULL REFERENCES quests(quest_id),

    CONSTRAINT valid_task_points CHECK (points >= 0),
    CONSTRAINT valid_task_contribution CHECK (quest_contribution_amount_on_complete >= 0)
);

CREATE INDEX IF NOT EXISTS idx_tasks_quest ON tasks(associated_quest_id);
`

const migration002Down = `
DROP TABLE IF EXISTS tasks;
DROP TABLE IF EXISTS quests;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: PROGRESS AND LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS task_progress (
    task_id VARCHAR(64) NOT NULL,
    student_id VARCHAR(64) NOT NULL,
    date_assigned DATE NOT NULL,
    task_verified BOOLEAN NOT NULL DEFAULT FALSE,
    task_rejected BOOLEAN NOT NULL DEFAULT FALSE,
    verification_pending BOOLEAN NOT NULL DEFAULT TRUE,
    assigned_teacher_id VARCHAR(64) NOT NULL,
    image_urls TEXT[] NOT NULL DEFAULT '{}',

    PRIMARY KEY (task_id, student_id, date_assigned),
    CONSTRAINT single_outcome CHECK (NOT (task_verified AND task_rejected))
);

CREATE INDEX IF NOT EXISTS idx_task_progress_pending
    ON task_progress(assigned_teacher_id, date_assigned)
    WHERE verification_pending;

CREATE TABLE IF NOT EXISTS quest_progress (
    quest_id VARCHAR(64) NOT NULL,
    class_id VARCHAR(64) NOT NULL,
    date_assigned DATE NOT NULL,
    amount_completed INTEGER NOT NULL DEFAULT 0,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    assigned_teacher_id VARCHAR(64) NOT NULL,

    PRIMARY KEY (quest_id, class_id, date_assigned),
    CONSTRAINT valid_amount CHECK (amount_completed >= 0)
);

CREATE INDEX IF NOT EXISTS idx_quest_progress_class ON quest_progress(class_id, date_assigned);

CREATE TABLE IF NOT EXISTS student_points (
    id UUID PRIMARY KEY,
    student_id VARCHAR(64) NOT NULL,
    task_id VARCHAR(64) NOT NULL,
    date_completed DATE NOT NULL,
    points_awarded INTEGER NOT NULL,

    CONSTRAINT student_points_once UNIQUE (student_id, task_id, date_completed),
    CONSTRAINT valid_student_award CHECK (points_awarded >= 0)
);

CREATE TABLE IF NOT EXISTS class_points (
    id UUID PRIMARY KEY,
    class_id VARCHAR(64) NOT NULL,
    quest_id VARCHAR(64) NOT NULL,
    date_completed DATE NOT NULL,
    contributing_student_id VARCHAR(64) NOT NULL,
    points_awarded INTEGER NOT NULL,

    CONSTRAINT class_points_once UNIQUE (class_id, quest_id, date_completed, contributing_student_id),
    CONSTRAINT valid_class_award CHECK (points_awarded >= 0)
);

CREATE INDEX IF NOT EXISTS idx_class_points_class ON class_points(class_id, date_completed);
`

const migration003Down = `
DROP TABLE IF EXISTS class_points;
DROP TABLE IF EXISTS student_points;
DROP TABLE IF EXISTS quest_progress;
DROP TABLE IF EXISTS task_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_roster", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_catalog", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_progress_ledger", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns applied versions with their timestamps.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var lastVersion int
	for v := range applied {
		if v > lastVersion {
			lastVersion = v
		}
	}
	if lastVersion == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", lastVersion, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), lastVersion)
		return err
	})
}

// Status returns every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if appliedAt, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = appliedAt
		}
	}
	return result, nil
}
