package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"postpilot/internal/domain/postlog"
)

// PostLogStoreForOrchestrator defines the store interface needed by the post log manager.
type PostLogStoreForOrchestrator interface {
	CreateOrReuse(ctx context.Context, r postlog.Record) (postlog.Record, error)
	GetByID(ctx context.Context, tenantID, id string) (postlog.Record, error)
	GetByKey(ctx context.Context, key postlog.Key) (postlog.Record, error)
	Save(ctx context.Context, r postlog.Record) error
}

// CreateLogInput carries the intended field values of a delivery slot.
type CreateLogInput struct {
	TenantID         string
	UserID           string
	PublicationID    string
	CampaignID       string
	AccountID        string
	MediaFileID      string // empty when nothing is attached
	Platform         string
	Content          string
	MediaURLs        []string
	PlatformSettings map[string]any
	Status           string // defaults to pending
}

// PostLogManager owns delivery record transitions. Every method takes the tenant
// explicitly through the record or input; nothing is read from ambient state.
type PostLogManager struct {
	store      PostLogStoreForOrchestrator
	generateID func() string
	now        func() time.Time
}

// NewPostLogManager creates a post log manager.
func NewPostLogManager(store PostLogStoreForOrchestrator, generateID func() string, now func() time.Time) *PostLogManager {
	return &PostLogManager{store: store, generateID: generateID, now: now}
}

// CreateOrReusePendingLog claims the (publication, account, media) slot for an attempt.
// PRE: TenantID, PublicationID, AccountID and Platform are non-empty
// POST: exactly one record exists for the slot, carrying this call's content fields;
// retry_count and id of an existing record survive
func (m *PostLogManager) CreateOrReusePendingLog(ctx context.Context, in CreateLogInput) (postlog.Record, error) {
	status := in.Status
	if status == "" {
		status = postlog.StatusPending
	}
	now := m.now()
	r := postlog.Record{
		ID:               m.generateID(),
		TenantID:         in.TenantID,
		UserID:           in.UserID,
		PublicationID:    in.PublicationID,
		CampaignID:       in.CampaignID,
		AccountID:        in.AccountID,
		MediaFileID:      in.MediaFileID,
		Platform:         in.Platform,
		Content:          in.Content,
		MediaURLs:        in.MediaURLs,
		PlatformSettings: in.PlatformSettings,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := r.Validate(); err != nil {
		return postlog.Record{}, err
	}

	stored, err := m.store.CreateOrReuse(ctx, r)
	if err != nil {
		return postlog.Record{}, fmt.Errorf("create or reuse post log: %w", err)
	}
	slog.Info("post_log_event", "event", "slot_claimed", "post_log_id", stored.ID,
		"publication_id", stored.PublicationID, "account_id", stored.AccountID, "reused", stored.ID != r.ID)
	return stored, nil
}

// Get loads one of the tenant's records.
// POST: returns postlog.ErrRecordNotFound when missing or foreign
func (m *PostLogManager) Get(ctx context.Context, tenantID, id string) (postlog.Record, error) {
	return m.store.GetByID(ctx, tenantID, id)
}

// GetSlot loads the record occupying a delivery slot inside the tenant.
// POST: returns postlog.ErrRecordNotFound when the slot is empty or held by another tenant
func (m *PostLogManager) GetSlot(ctx context.Context, tenantID string, key postlog.Key) (postlog.Record, error) {
	r, err := m.store.GetByKey(ctx, key)
	if err != nil {
		return postlog.Record{}, err
	}
	if r.TenantID != tenantID {
		return postlog.Record{}, postlog.ErrRecordNotFound
	}
	return r, nil
}

// MarkPublishing moves a pending record into flight.
// PRE: r.Status is pending
func (m *PostLogManager) MarkPublishing(ctx context.Context, r postlog.Record) (postlog.Record, error) {
	if err := r.MarkPublishing(m.now()); err != nil {
		return r, err
	}
	return m.save(ctx, r, "publishing")
}

// MarkPublished records a successful publish with the platform's identifiers and counters.
// POST: status published, error cleared, engagement normalised
func (m *PostLogManager) MarkPublished(ctx context.Context, r postlog.Record, resp postlog.PlatformResponse) (postlog.Record, error) {
	r.MarkPublished(resp, m.now())
	return m.save(ctx, r, "published")
}

// MarkFailed records a failed attempt. The retry counter is not touched.
// POST: status failed, message truncated to postlog.MaxErrorLength runes
func (m *PostLogManager) MarkFailed(ctx context.Context, r postlog.Record, message string) (postlog.Record, error) {
	r.MarkFailed(message, m.now())
	return m.save(ctx, r, "failed")
}

// CanRetry reports whether a user may retry the record.
func (m *PostLogManager) CanRetry(r postlog.Record) bool {
	return r.CanRetry()
}

// ResetForRetry puts a failed record back in the queue.
// POST: postlog.ErrRetryLimitExceeded without any write when the record cannot retry;
// otherwise retry_count incremented, last_retry_at stamped, status pending
func (m *PostLogManager) ResetForRetry(ctx context.Context, r postlog.Record) (postlog.Record, error) {
	if err := r.ResetForRetry(m.now()); err != nil {
		slog.Warn("post_log_retry_refused", "post_log_id", r.ID, "status", r.Status, "retry_count", r.RetryCount)
		return r, err
	}
	return m.save(ctx, r, "retry_reset")
}

// MarkRemovedOnPlatform records that a published post vanished remotely.
// PRE: r.Status is published
func (m *PostLogManager) MarkRemovedOnPlatform(ctx context.Context, r postlog.Record, orphaned bool) (postlog.Record, error) {
	if err := r.MarkRemovedOnPlatform(orphaned, m.now()); err != nil {
		return r, err
	}
	return m.save(ctx, r, r.Status)
}

func (m *PostLogManager) save(ctx context.Context, r postlog.Record, event string) (postlog.Record, error) {
	if err := m.store.Save(ctx, r); err != nil {
		return r, fmt.Errorf("save post log %s: %w", r.ID, err)
	}
	slog.Info("post_log_event", "event", event, "post_log_id", r.ID, "platform", r.Platform,
		"status", r.Status, "retry_count", r.RetryCount)
	return r, nil
}
