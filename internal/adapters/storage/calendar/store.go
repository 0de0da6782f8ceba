package calendar

import (
	"context"
	"time"

	domain "postpilot/internal/domain/calendar"
)

// Store persists scheduled items.
type Store interface {
	// Save inserts or updates a scheduled item.
	// PRE: e is a valid Event (Validate() returns nil)
	Save(ctx context.Context, e domain.Event) error

	// GetByID looks an item up regardless of tenant so callers can tell "missing" from
	// "foreign". Callers must check BelongsTo before using or returning it.
	// POST: returns domain.ErrNotFound when no row exists
	GetByID(ctx context.Context, id string) (domain.Event, error)

	// Reschedule moves one of the tenant's unpublished items.
	// POST: returns domain.ErrNotFound when (id, tenant) matched no movable row
	Reschedule(ctx context.Context, tenantID, id string, startAt, endAt, now time.Time) error

	// Delete removes one of the tenant's items.
	// POST: returns domain.ErrNotFound when (id, tenant) matched nothing
	Delete(ctx context.Context, tenantID, id string) error

	// ListInRange returns the tenant's items overlapping [from, to] that pass the filter.
	// POST: sorted by start_at ascending
	ListInRange(ctx context.Context, tenantID string, from, to time.Time, f domain.Filter) ([]domain.Event, error)
}
