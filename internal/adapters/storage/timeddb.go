package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SQLDB is the database interface used by all stores.
// Both *sql.DB and *TimedDB satisfy this interface.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Compile-time check that *sql.DB satisfies SQLDB.
var _ SQLDB = (*sql.DB)(nil)

// DefaultSlowQuery is the default threshold for slow query warnings.
const DefaultSlowQuery = 50 * time.Millisecond

// maxStatementAttr bounds the SQL text attached to spans.
const maxStatementAttr = 256

// TimedDB wraps a *sql.DB to log slow queries and emit one span per call.
// Satisfies the SQLDB interface so it can be passed to any store constructor.
type TimedDB struct {
	db        *sql.DB
	tracer    trace.Tracer
	threshold time.Duration
}

// Compile-time check that *TimedDB satisfies SQLDB.
var _ SQLDB = (*TimedDB)(nil)

// NewTimedDB wraps a *sql.DB with timing instrumentation.
// A zero threshold uses DefaultSlowQuery; a nil provider uses the global one.
// PRE: db is a valid database connection
// POST: Returns a TimedDB that logs slow queries and traces every call
func NewTimedDB(db *sql.DB, threshold time.Duration, tp trace.TracerProvider) *TimedDB {
	if threshold <= 0 {
		threshold = DefaultSlowQuery
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TimedDB{
		db:        db,
		tracer:    tp.Tracer("postpilot/storage"),
		threshold: threshold,
	}
}

// RawDB returns the underlying *sql.DB (needed for migrations and pool config).
// PRE: none
// POST: returns the unwrapped *sql.DB
func (t *TimedDB) RawDB() *sql.DB {
	return t.db
}

func (t *TimedDB) start(ctx context.Context, op, query string) (context.Context, trace.Span, time.Time) {
	stmt := query
	if len(stmt) > maxStatementAttr {
		stmt = stmt[:maxStatementAttr]
	}
	ctx, span := t.tracer.Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "sqlite"),
			attribute.String("db.statement", stmt),
		))
	return ctx, span, time.Now()
}

// finish logs the call and closes its span.
func (t *TimedDB) finish(span trace.Span, op string, start time.Time, err error) {
	elapsed := time.Since(start)
	durationMs := float64(elapsed.Microseconds()) / 1000.0

	if elapsed >= t.threshold {
		slog.Warn("slow_query",
			"op", op,
			"duration_ms", durationMs,
		)
	} else {
		slog.Debug("query",
			"op", op,
			"duration_ms", durationMs,
		)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ExecContext wraps sql.DB.ExecContext with timing.
// PRE: ctx is valid, query is non-empty
// POST: query executed, span ended
func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span, start := t.start(ctx, "ExecContext", query)
	result, err := t.db.ExecContext(ctx, query, args...)
	t.finish(span, "ExecContext", start, err)
	return result, err
}

// QueryContext wraps sql.DB.QueryContext with timing.
// PRE: ctx is valid, query is non-empty
// POST: query executed, span ended
func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span, start := t.start(ctx, "QueryContext", query)
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.finish(span, "QueryContext", start, err)
	return rows, err
}

// QueryRowContext wraps sql.DB.QueryRowContext with timing.
// Scan errors surface to the caller, not to the span.
func (t *TimedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	ctx, span, start := t.start(ctx, "QueryRowContext", query)
	row := t.db.QueryRowContext(ctx, query, args...)
	t.finish(span, "QueryRowContext", start, row.Err())
	return row
}

// BeginTx wraps sql.DB.BeginTx with timing.
// PRE: ctx is valid
// POST: transaction started, span ended
func (t *TimedDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	ctx, span, start := t.start(ctx, "BeginTx", "BEGIN")
	tx, err := t.db.BeginTx(ctx, opts)
	t.finish(span, "BeginTx", start, err)
	return tx, err
}

// Close closes the underlying database connection.
func (t *TimedDB) Close() error {
	return t.db.Close()
}

// Ping verifies the database connection.
func (t *TimedDB) Ping() error {
	return t.db.Ping()
}

// SetMaxOpenConns sets the maximum number of open connections.
// PRE: n >= 0
// INVARIANT: db is not nil
func (t *TimedDB) SetMaxOpenConns(n int) {
	t.db.SetMaxOpenConns(n)
}
