package webhook

import (
	"context"

	domain "postpilot/internal/domain/webhook"
)

// Store persists webhook delivery logs. Rows are insert-only.
type Store interface {
	// Insert appends one delivery log.
	// PRE: l.ID and l.TenantID are non-empty
	Insert(ctx context.Context, l domain.DeliveryLog) error

	// ListByTenant returns the tenant's most recent logs, newest first.
	// PRE: limit > 0
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]domain.DeliveryLog, error)
}
