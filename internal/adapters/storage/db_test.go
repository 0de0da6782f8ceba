package storage

import (
	"database/sql"
	"sort"
	"testing"

	_ "modernc.org/sqlite"
)

// openTestDB creates an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// each pooled connection would get its own in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// getTableNames returns sorted table names from sqlite_master, excluding internal tables.
func getTableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan table name: %v", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var expectedTables = []string{
	"outbox",
	"post_log",
	"scheduled_event",
	"schema_version",
	"webhook_delivery_log",
}

// TestInitDB_CreatesTables verifies the full schema on a fresh database.
func TestInitDB_CreatesTables(t *testing.T) {
	db := openTestDB(t)
	if err := InitDB(db); err != nil {
		t.Fatalf("InitDB: %v", err)
	}

	got := getTableNames(t, db)
	if len(got) != len(expectedTables) {
		t.Fatalf("tables = %v, want %v", got, expectedTables)
	}
	for i := range got {
		if got[i] != expectedTables[i] {
			t.Errorf("table[%d] = %q, want %q", i, got[i], expectedTables[i])
		}
	}

	v, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("schema version = %d, want %d", v, len(migrations))
	}
}

// TestInitDB_Idempotent verifies a second run applies nothing and keeps data.
func TestInitDB_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := InitDB(db); err != nil {
		t.Fatalf("first InitDB: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO scheduled_event (id, tenant_id, publication_id, start_at, created_at, updated_at)
		VALUES ('e1', 't1', 'p1', 'x', 'x', 'x')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := InitDB(db); err != nil {
		t.Fatalf("second InitDB: %v", err)
	}

	var n int
	db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n)
	if n != len(migrations) {
		t.Errorf("schema_version rows = %d, want %d", n, len(migrations))
	}
	db.QueryRow("SELECT COUNT(*) FROM scheduled_event").Scan(&n)
	if n != 1 {
		t.Errorf("scheduled_event rows = %d, want 1", n)
	}
}

// TestInitDB_PostLogUniqueKey verifies the delivery slot uniqueness at the schema level.
func TestInitDB_PostLogUniqueKey(t *testing.T) {
	db := openTestDB(t)
	if err := InitDB(db); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	insert := `INSERT INTO post_log (id, tenant_id, publication_id, account_id, media_file_id, platform, created_at, updated_at)
		VALUES (?, 't1', '42', '7', '3', 'instagram', 'x', 'x')`
	if _, err := db.Exec(insert, "a"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(insert, "b"); err == nil {
		t.Fatal("expected unique constraint violation on duplicate (publication, account, media)")
	}
}
