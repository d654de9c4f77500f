package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations and records them in schema_migrations.
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

	if _, err := m.conn.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.pool.Query(ctx, query)
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
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := pgx.BeginFunc(ctx, m.conn.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insertQuery := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Status returns the migration status.
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

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_directory",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_series_and_commitments",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_instances_and_participants",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS people (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('trainer', 'student', 'admin'))
);

CREATE TABLE IF NOT EXISTS exercises (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	muscle_group TEXT NOT NULL DEFAULT ''
);
`

const migration001Down = `
DROP TABLE IF EXISTS exercises;
DROP TABLE IF EXISTS people;
`

// Empty ranges (effective_to = effective_from) never overlap, so superseded
// zero-length versions pass the exclusion constraints.
const migration002Up = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS series (
	id               TEXT PRIMARY KEY,
	series_id        TEXT NOT NULL,
	trainer_id       TEXT NOT NULL,
	weekday          SMALLINT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
	start_minute     INTEGER NOT NULL CHECK (start_minute BETWEEN 0 AND 1439),
	duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
	name             TEXT NOT NULL,
	room             TEXT,
	equipment        TEXT,
	notes            TEXT,
	max_participants INTEGER CHECK (max_participants >= 0),
	effective_from   TIMESTAMPTZ NOT NULL,
	effective_to     TIMESTAMPTZ,
	active           BOOLEAN NOT NULL DEFAULT TRUE,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	CHECK (effective_to IS NULL OR effective_to >= effective_from),
	CONSTRAINT series_no_overlap EXCLUDE USING gist (
		trainer_id WITH =,
		weekday WITH =,
		tstzrange(effective_from, effective_to, '[)') WITH &&
	) WHERE (active)
);

CREATE INDEX IF NOT EXISTS idx_series_lineage ON series (series_id, effective_from);

CREATE TABLE IF NOT EXISTS commitments (
	id             TEXT PRIMARY KEY,
	student_id     TEXT NOT NULL,
	series_id      TEXT NOT NULL,
	status         TEXT NOT NULL CHECK (status IN ('ATTENDING', 'NOT_ATTENDING', 'TENTATIVE')),
	effective_from TIMESTAMPTZ NOT NULL,
	effective_to   TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL,
	CHECK (effective_to IS NULL OR effective_to >= effective_from),
	CONSTRAINT commitments_no_overlap EXCLUDE USING gist (
		student_id WITH =,
		series_id WITH =,
		tstzrange(effective_from, effective_to, '[)') WITH &&
	)
);

CREATE INDEX IF NOT EXISTS idx_commitments_series ON commitments (series_id);
`

const migration002Down = `
DROP TABLE IF EXISTS commitments;
DROP TABLE IF EXISTS series;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS instances (
	id                TEXT PRIMARY KEY,
	series_id         TEXT,
	series_version_id TEXT,
	trainer_id        TEXT NOT NULL,
	scheduled_at      TIMESTAMPTZ NOT NULL,
	occurrence_date   TEXT,
	base              JSONB,
	diff              JSONB NOT NULL DEFAULT '{}'::jsonb,
	cancelled         BOOLEAN NOT NULL DEFAULT FALSE,
	revision          BIGINT NOT NULL DEFAULT 1,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	CONSTRAINT instances_one_per_occurrence UNIQUE (series_id, occurrence_date)
);

CREATE INDEX IF NOT EXISTS idx_instances_trainer ON instances (trainer_id, scheduled_at);

CREATE TABLE IF NOT EXISTS participants (
	instance_id TEXT NOT NULL REFERENCES instances (id),
	student_id  TEXT NOT NULL,
	present     BOOLEAN NOT NULL DEFAULT FALSE,
	notes       TEXT NOT NULL DEFAULT '',
	exercises   JSONB,
	updated_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (instance_id, student_id)
);
`

const migration003Down = `
DROP TABLE IF EXISTS participants;
DROP TABLE IF EXISTS instances;
`
