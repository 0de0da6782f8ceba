package webhook

import (
	"context"

	"postpilot/internal/adapters/storage"
	domain "postpilot/internal/domain/webhook"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new webhook delivery log store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert appends one delivery log.
// PRE: l.ID and l.TenantID are non-empty
// POST: row inserted; an existing id is an error
func (s *SQLiteStore) Insert(ctx context.Context, l domain.DeliveryLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_delivery_log (id, tenant_id, channel, event_type, payload, response, status_code, success, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.TenantID, l.Channel, l.EventType, l.Payload, l.Response, l.StatusCode, l.Success,
		storage.FormatTime(l.CreatedAt))
	return err
}

// ListByTenant returns the tenant's most recent logs, newest first.
// PRE: limit > 0
func (s *SQLiteStore) ListByTenant(ctx context.Context, tenantID string, limit int) ([]domain.DeliveryLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, channel, event_type, payload, response, status_code, success, created_at
		 FROM webhook_delivery_log WHERE tenant_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.DeliveryLog
	for rows.Next() {
		var l domain.DeliveryLog
		var createdAt string
		if err := rows.Scan(&l.ID, &l.TenantID, &l.Channel, &l.EventType, &l.Payload, &l.Response,
			&l.StatusCode, &l.Success, &createdAt); err != nil {
			return nil, err
		}
		l.CreatedAt = storage.ParseTime(createdAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
