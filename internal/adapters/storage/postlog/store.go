package postlog

import (
	"context"

	domain "postpilot/internal/domain/postlog"
)

// Store defines the interface for post log persistence.
type Store interface {
	// CreateOrReuse inserts the record or, when its (publication, account, media) slot is
	// already taken by the same tenant, overwrites the slot's content fields in place.
	// PRE: r has been validated; r.ID and r.CreatedAt are used only for a fresh insert
	// POST: exactly one row exists for r.Key(); the stored row is returned
	CreateOrReuse(ctx context.Context, r domain.Record) (domain.Record, error)

	// GetByID retrieves a record inside the tenant.
	// POST: returns domain.ErrRecordNotFound when missing or owned by another tenant
	GetByID(ctx context.Context, tenantID, id string) (domain.Record, error)

	// GetByKey retrieves the record occupying a delivery slot.
	// POST: returns domain.ErrRecordNotFound when the slot is empty
	GetByKey(ctx context.Context, key domain.Key) (domain.Record, error)

	// Save writes every mutable field of an existing record.
	// PRE: the record exists for r.TenantID
	// POST: returns domain.ErrRecordNotFound if no row matched (id, tenant)
	Save(ctx context.Context, r domain.Record) error

	// ListByPublication returns the tenant's records for one publication.
	ListByPublication(ctx context.Context, tenantID, publicationID string) ([]domain.Record, error)

	// ListByCampaign returns the tenant's records for one campaign, narrowed to userID when set.
	ListByCampaign(ctx context.Context, tenantID, campaignID, userID string) ([]domain.Record, error)
}
