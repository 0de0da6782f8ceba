package outbox

import (
	"context"

	domain "postpilot/internal/domain/outbox"
)

// Store defines the interface for outbox entry persistence.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	// POST: returns domain.ErrNotFound when missing
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save inserts or updates an entry.
	// PRE: entry has been validated
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns entries still being worked (pending or retrying), oldest first.
	// PRE: limit > 0
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListFailed returns the tenant's entries whose attempts are spent, most recent attempt first.
	// PRE: limit > 0
	ListFailed(ctx context.Context, tenantID string, limit int) ([]domain.Entry, error)
}
