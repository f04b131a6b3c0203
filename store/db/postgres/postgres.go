package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/dharmateja03/CalBot/internal/profile"
	"github.com/dharmateja03/CalBot/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL connection pool for the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	pgDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	if err := pgDB.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping db")
	}

	pgDB.SetMaxOpenConns(10)
	pgDB.SetMaxIdleConns(5)

	driver := DB{db: pgDB, profile: profile}
	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

var migrationDDL = []string{
	`CREATE TABLE IF NOT EXISTS calendar_event (
		id SERIAL PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_ts BIGINT NOT NULL,
		end_ts BIGINT NOT NULL,
		source TEXT NOT NULL DEFAULT 'user',
		created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
		updated_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_calendar_event_user_start ON calendar_event (user_id, start_ts)`,
	`CREATE TABLE IF NOT EXISTS user_preferences (
		user_id TEXT PRIMARY KEY,
		work_hours_start TEXT NOT NULL DEFAULT '09:00',
		work_hours_end TEXT NOT NULL DEFAULT '17:00',
		break_start TEXT NOT NULL DEFAULT '12:00',
		break_end TEXT NOT NULL DEFAULT '13:00',
		timezone TEXT NOT NULL DEFAULT 'UTC',
		created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
		updated_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS chat_message (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_message_user_created ON chat_message (user_id, created_ts)`,
}

// Migrate creates the schema if it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	for _, ddl := range migrationDDL {
		if _, err := d.db.ExecContext(ctx, ddl); err != nil {
			return errors.Wrap(err, "failed to apply migration")
		}
	}
	return nil
}
