package outbox

import (
	"context"
	"database/sql"
	"errors"

	"postpilot/internal/adapters/storage"
	domain "postpilot/internal/domain/outbox"
)

const selectColumns = `SELECT id, tenant_id, action_type, payload, status, attempts, max_attempts,
	last_attempted_at, created_at, external_id, error_message FROM outbox`

// SQLiteStore implements the outbox Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new outbox store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an outbox entry by its ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, domain.ErrNotFound
	}
	return e, err
}

// Save inserts or updates an entry.
func (s *SQLiteStore) Save(ctx context.Context, e domain.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox (id, tenant_id, action_type, payload, status, attempts, max_attempts,
			last_attempted_at, created_at, external_id, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, attempts=excluded.attempts, max_attempts=excluded.max_attempts,
		   last_attempted_at=excluded.last_attempted_at, external_id=excluded.external_id,
		   error_message=excluded.error_message`,
		e.ID, e.TenantID, e.ActionType, e.Payload, e.Status, e.Attempts, e.MaxAttempts,
		storage.FormatTime(e.LastAttemptedAt), storage.FormatTime(e.CreatedAt), e.ExternalID, e.ErrorMessage)
	return err
}

// ListPending returns entries still being worked, oldest first.
func (s *SQLiteStore) ListPending(ctx context.Context, limit int) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE status IN (?, ?) ORDER BY created_at ASC LIMIT ?`,
		domain.StatusPending, domain.StatusRetrying, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListFailed returns the tenant's entries whose attempts are spent, most recent attempt first.
func (s *SQLiteStore) ListFailed(ctx context.Context, tenantID string, limit int) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE status = ? AND tenant_id = ? ORDER BY last_attempted_at DESC LIMIT ?`,
		domain.StatusFailed, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (domain.Entry, error) {
	var e domain.Entry
	var lastAttemptedAt, createdAt string
	err := row.Scan(&e.ID, &e.TenantID, &e.ActionType, &e.Payload, &e.Status, &e.Attempts, &e.MaxAttempts,
		&lastAttemptedAt, &createdAt, &e.ExternalID, &e.ErrorMessage)
	if err != nil {
		return domain.Entry{}, err
	}
	e.LastAttemptedAt = storage.ParseTime(lastAttemptedAt)
	e.CreatedAt = storage.ParseTime(createdAt)
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]domain.Entry, error) {
	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
