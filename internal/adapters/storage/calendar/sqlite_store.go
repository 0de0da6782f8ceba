package calendar

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"postpilot/internal/adapters/storage"
	domain "postpilot/internal/domain/calendar"
)

const selectColumns = `SELECT id, tenant_id, user_id, publication_id, campaign_id, platform, title, status,
	start_at, end_at, created_at, updated_at FROM scheduled_event`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLiteStore.
// PRE: db is a valid, open database connection with migrations applied
// POST: store is ready for use
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save inserts or updates a scheduled item. The owning tenant never changes.
// PRE: e is a valid Event (Validate() returns nil)
// POST: event is persisted
func (s *SQLiteStore) Save(ctx context.Context, e domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_event (id, tenant_id, user_id, publication_id, campaign_id, platform, title, status,
		   start_at, end_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id=excluded.user_id, publication_id=excluded.publication_id, campaign_id=excluded.campaign_id,
		   platform=excluded.platform, title=excluded.title, status=excluded.status,
		   start_at=excluded.start_at, end_at=excluded.end_at, updated_at=excluded.updated_at
		 WHERE scheduled_event.tenant_id = excluded.tenant_id`,
		e.ID, e.TenantID, e.UserID, e.PublicationID, e.CampaignID, e.Platform, e.Title, e.Status,
		storage.FormatTime(e.StartAt), storage.FormatTime(e.EndAt),
		storage.FormatTime(e.CreatedAt), storage.FormatTime(e.UpdatedAt),
	)
	return err
}

// GetByID retrieves a scheduled item by ID.
// PRE: id is non-empty
// POST: returns the event or domain.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, domain.ErrNotFound
	}
	return e, err
}

// Reschedule moves one of the tenant's unpublished items.
// PRE: startAt passed the lead-time check upstream
// POST: row updated or domain.ErrNotFound
func (s *SQLiteStore) Reschedule(ctx context.Context, tenantID, id string, startAt, endAt, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_event SET start_at = ?, end_at = ?, updated_at = ?
		 WHERE id = ? AND tenant_id = ? AND status != ?`,
		storage.FormatTime(startAt), storage.FormatTime(endAt), storage.FormatTime(now),
		id, tenantID, domain.StatusPublished)
	return affectedOne(res, err)
}

// Delete removes one of the tenant's items.
// PRE: id is non-empty
// POST: event is removed from storage or domain.ErrNotFound
func (s *SQLiteStore) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_event WHERE id = ? AND tenant_id = ?`, id, tenantID)
	return affectedOne(res, err)
}

// ListInRange returns the tenant's items overlapping [from, to] that pass the filter.
// An item without an end is a point in time at start_at.
// POST: returns events sorted by start_at ascending
func (s *SQLiteStore) ListInRange(ctx context.Context, tenantID string, from, to time.Time, f domain.Filter) ([]domain.Event, error) {
	fromStr, toStr := storage.FormatTime(from), storage.FormatTime(to)
	query := selectColumns + ` WHERE tenant_id = ? AND start_at <= ?
		AND ((end_at != '' AND end_at >= ?) OR (end_at = '' AND start_at >= ?))`
	args := []any{tenantID, toStr, fromStr, fromStr}

	if len(f.Platforms) > 0 {
		query += ` AND platform IN (` + placeholders(len(f.Platforms)) + `)`
		for _, p := range f.Platforms {
			args = append(args, p)
		}
	}
	if f.CampaignID != "" {
		query += ` AND campaign_id = ?`
		args = append(args, f.CampaignID)
	}
	if len(f.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(f.Statuses)) + `)`
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY start_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (domain.Event, error) {
	var e domain.Event
	var startAt, endAt, createdAt, updatedAt string
	if err := sc.Scan(&e.ID, &e.TenantID, &e.UserID, &e.PublicationID, &e.CampaignID, &e.Platform, &e.Title,
		&e.Status, &startAt, &endAt, &createdAt, &updatedAt); err != nil {
		return domain.Event{}, err
	}
	e.StartAt = storage.ParseTime(startAt)
	e.EndAt = storage.ParseTime(endAt)
	e.CreatedAt = storage.ParseTime(createdAt)
	e.UpdatedAt = storage.ParseTime(updatedAt)
	return e, nil
}
