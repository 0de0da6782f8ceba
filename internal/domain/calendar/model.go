package calendar

import (
	"errors"
	"time"
)

// Status constants for a scheduled item.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusPublished = "published"
	StatusFailed    = "failed"
)

// Max length constants.
const (
	MaxTitleLength = 200
)

// Domain errors.
var (
	ErrNotFound         = errors.New("scheduled item not found")
	ErrAlreadyPublished = errors.New("scheduled item already published")
)

// Event is one scheduled item on a workspace's content calendar.
// PRE: TenantID and PublicationID are non-empty. StartAt is set.
// INVARIANT: EndAt >= StartAt when EndAt is set.
type Event struct {
	ID            string
	TenantID      string
	UserID        string
	PublicationID string
	CampaignID    string
	Platform      string
	Title         string
	Status        string
	StartAt       time.Time // the publication's scheduled_at
	EndAt         time.Time // zero value means a point-in-time item
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Filter narrows a range query. Every non-empty field is ANDed with the tenant scope.
type Filter struct {
	Platforms  []string
	CampaignID string
	Statuses   []string
}

// Validate checks the event's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (e *Event) Validate() error {
	if e.TenantID == "" {
		return errors.New("scheduled item tenant is required")
	}
	if e.PublicationID == "" {
		return errors.New("scheduled item publication is required")
	}
	if len(e.Title) > MaxTitleLength {
		return errors.New("scheduled item title cannot exceed 200 characters")
	}
	switch e.Status {
	case StatusDraft, StatusScheduled, StatusPublished, StatusFailed:
	default:
		return errors.New("scheduled item status must be draft, scheduled, published or failed")
	}
	if e.StartAt.IsZero() {
		return errors.New("scheduled item start is required")
	}
	if !e.EndAt.IsZero() && e.EndAt.Before(e.StartAt) {
		return errors.New("scheduled item end cannot be before start")
	}
	return nil
}

// BelongsTo reports whether the item is inside tenantID's workspace.
func (e *Event) BelongsTo(tenantID string) bool {
	return tenantID != "" && e.TenantID == tenantID
}

// Reschedule moves the item to newStart, keeping its duration.
// PRE: newStart was validated upstream (minimum lead time)
// POST: StartAt is newStart, EndAt shifted by the same delta
func (e *Event) Reschedule(newStart, now time.Time) error {
	if e.Status == StatusPublished {
		return ErrAlreadyPublished
	}
	if !e.EndAt.IsZero() {
		e.EndAt = newStart.Add(e.EndAt.Sub(e.StartAt))
	}
	e.StartAt = newStart
	e.UpdatedAt = now
	return nil
}

// Overlaps reports whether the item intersects [start, end].
func (e *Event) Overlaps(start, end time.Time) bool {
	itemEnd := e.EndAt
	if itemEnd.IsZero() {
		itemEnd = e.StartAt
	}
	return !e.StartAt.After(end) && !itemEnd.Before(start)
}

// Matches reports whether the item passes every non-empty filter field.
func (f Filter) Matches(e Event) bool {
	if len(f.Platforms) > 0 && !contains(f.Platforms, e.Platform) {
		return false
	}
	if f.CampaignID != "" && f.CampaignID != e.CampaignID {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, e.Status) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
