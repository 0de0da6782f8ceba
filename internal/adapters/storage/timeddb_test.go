package storage

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	_ "modernc.org/sqlite"
)

func openTimedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.Exec("CREATE TABLE test (id TEXT PRIMARY KEY, val TEXT)")
	return db
}

func newRecordedTimedDB(t *testing.T, db *sql.DB) (*TimedDB, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	return NewTimedDB(db, 0, tp), rec
}

// TestTimedDB_ExecContext verifies ExecContext ends one span.
func TestTimedDB_ExecContext(t *testing.T) {
	db := openTimedTestDB(t)
	defer db.Close()
	tdb, rec := newRecordedTimedDB(t, db)

	_, err := tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello")
	if err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "db.ExecContext" {
		t.Errorf("span name = %q, want db.ExecContext", spans[0].Name())
	}
}

// TestTimedDB_QueryContext verifies QueryContext is traced.
func TestTimedDB_QueryContext(t *testing.T) {
	db := openTimedTestDB(t)
	defer db.Close()
	tdb, rec := newRecordedTimedDB(t, db)

	tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello")

	rows, err := tdb.QueryContext(context.Background(), "SELECT id, val FROM test")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	count := 0
	for rows.Next() {
		count++
	}
	rows.Close()
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
	// 1 exec + 1 query
	if len(rec.Ended()) != 2 {
		t.Errorf("spans = %d, want 2", len(rec.Ended()))
	}
}

// TestTimedDB_QueryRowContext verifies QueryRowContext results pass through.
func TestTimedDB_QueryRowContext(t *testing.T) {
	db := openTimedTestDB(t)
	defer db.Close()
	tdb, _ := newRecordedTimedDB(t, db)

	tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello")

	var val string
	if err := tdb.QueryRowContext(context.Background(), "SELECT val FROM test WHERE id = ?", "1").Scan(&val); err != nil {
		t.Fatalf("QueryRowContext: %v", err)
	}
	if val != "hello" {
		t.Errorf("val = %q, want hello", val)
	}

	err := tdb.QueryRowContext(context.Background(), "SELECT val FROM test WHERE id = ?", "missing").Scan(&val)
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

// TestTimedDB_BeginTx verifies BeginTx is traced and usable.
func TestTimedDB_BeginTx(t *testing.T) {
	db := openTimedTestDB(t)
	defer db.Close()
	tdb, rec := newRecordedTimedDB(t, db)

	tx, err := tdb.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	tx.Exec("INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello")
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(rec.Ended()) < 1 {
		t.Errorf("spans = %d, want >= 1", len(rec.Ended()))
	}
}

// TestTimedDB_ErrorPassthrough verifies SQL errors are returned unchanged and marked on the span.
func TestTimedDB_ErrorPassthrough(t *testing.T) {
	db := openTimedTestDB(t)
	defer db.Close()
	tdb, rec := newRecordedTimedDB(t, db)

	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO nonexistent_table VALUES (?)", 1); err == nil {
		t.Fatal("expected error from invalid SQL, got nil")
	}
	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status().Code)
	}
}

// TestTimedDB_CancelledContext verifies a cancelled context still ends its span.
func TestTimedDB_CancelledContext(t *testing.T) {
	db := openTimedTestDB(t)
	defer db.Close()
	tdb, rec := newRecordedTimedDB(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
	if len(rec.Ended()) != 1 {
		t.Errorf("spans = %d, want 1", len(rec.Ended()))
	}
}

// TestTimedDB_ResultPassthrough verifies sql.Result values are returned unchanged.
func TestTimedDB_ResultPassthrough(t *testing.T) {
	db := openTimedTestDB(t)
	defer db.Close()
	tdb := NewTimedDB(db, time.Second, nil)

	result, err := tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "r1", "result")
	if err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		t.Fatalf("RowsAffected: %v", err)
	}
	if n != 1 {
		t.Errorf("RowsAffected = %d, want 1", n)
	}
}

// TestTimedDB_RawDB verifies RawDB returns the original *sql.DB.
func TestTimedDB_RawDB(t *testing.T) {
	db := openTimedTestDB(t)
	defer db.Close()
	tdb := NewTimedDB(db, 0, nil)

	if tdb.RawDB() != db {
		t.Error("RawDB() should return the original *sql.DB")
	}
	if tdb.threshold != DefaultSlowQuery {
		t.Errorf("threshold = %v, want %v", tdb.threshold, DefaultSlowQuery)
	}
}

// TestTimedDB_ConcurrentMixedOps verifies no races or panics under concurrent calls.
func TestTimedDB_ConcurrentMixedOps(t *testing.T) {
	db := openTimedTestDB(t)
	defer db.Close()
	tdb, rec := newRecordedTimedDB(t, db)
	ctx := context.Background()

	tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "seed", "data")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				tdb.ExecContext(ctx, "INSERT OR REPLACE INTO test (id, val) VALUES (?, ?)", "w", "v")
				var v string
				tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "seed").Scan(&v)
			}
		}()
	}
	wg.Wait()

	if got := len(rec.Ended()); got != 1+4*20*2 {
		t.Errorf("spans = %d, want %d", got, 1+4*20*2)
	}
}

// BenchmarkTimedDB_Overhead compares TimedDB with the raw *sql.DB for the same query.
func BenchmarkTimedDB_Overhead(b *testing.B) {
	db, _ := sql.Open("sqlite", ":memory:")
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.Exec("CREATE TABLE bench (id INTEGER PRIMARY KEY, val TEXT)")
	db.Exec("INSERT INTO bench VALUES (1, 'x')")
	ctx := context.Background()

	b.Run("RawDB", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			var v string
			db.QueryRowContext(ctx, "SELECT val FROM bench WHERE id = 1").Scan(&v)
		}
	})

	tdb := NewTimedDB(db, 0, nil)
	b.Run("TimedDB", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			var v string
			tdb.QueryRowContext(ctx, "SELECT val FROM bench WHERE id = 1").Scan(&v)
		}
	})
}
