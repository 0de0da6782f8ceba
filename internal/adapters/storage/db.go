package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is one forward-only schema step.
type migration struct {
	version int
	name    string
	sql     string
}

// migrations run in order. Append only; never edit a released step.
var migrations = []migration{
	{
		version: 1,
		name:    "post_log",
		sql: `
	CREATE TABLE IF NOT EXISTS post_log (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		publication_id TEXT NOT NULL,
		campaign_id TEXT NOT NULL DEFAULT '',
		account_id TEXT NOT NULL,
		media_file_id TEXT NOT NULL DEFAULT '',
		platform TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		media_urls TEXT NOT NULL DEFAULT '[]',
		platform_settings TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'pending',
		platform_post_id TEXT NOT NULL DEFAULT '',
		platform_post_url TEXT NOT NULL DEFAULT '',
		platform_post_type TEXT NOT NULL DEFAULT '',
		published_at TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_retry_at TEXT NOT NULL DEFAULT '',
		engagement TEXT NOT NULL DEFAULT '{}',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (publication_id, account_id, media_file_id)
	);

	CREATE INDEX IF NOT EXISTS idx_post_log_tenant_publication ON post_log(tenant_id, publication_id);
	CREATE INDEX IF NOT EXISTS idx_post_log_tenant_campaign ON post_log(tenant_id, campaign_id);
	`,
	},
	{
		version: 2,
		name:    "scheduled_event",
		sql: `
	CREATE TABLE IF NOT EXISTS scheduled_event (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		publication_id TEXT NOT NULL,
		campaign_id TEXT NOT NULL DEFAULT '',
		platform TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'scheduled',
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scheduled_event_tenant_start ON scheduled_event(tenant_id, start_at);
	`,
	},
	{
		version: 3,
		name:    "webhook_delivery_log",
		sql: `
	CREATE TABLE IF NOT EXISTS webhook_delivery_log (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		event_type TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_webhook_delivery_log_tenant ON webhook_delivery_log(tenant_id, created_at);
	`,
	},
	{
		version: 4,
		name:    "outbox",
		sql: `
	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL DEFAULT '',
		action_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 5,
		last_attempted_at TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		external_id TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, created_at);
	`,
	},
}

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: every migration newer than schema_version is applied, WAL mode enabled
func InitDB(db *sql.DB) error {
	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
		slog.Info("migration_applied", "version", m.version, "name", m.name)
	}
	return nil
}

// SchemaVersion returns the highest applied migration, 0 for a fresh database.
func SchemaVersion(db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.sql); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
		return fmt.Errorf("migration %d: record version: %w", m.version, err)
	}
	return tx.Commit()
}
