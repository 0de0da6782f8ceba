package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"postpilot/internal/domain/bulk"
	"postpilot/internal/domain/calendar"
)

var tracer = otel.Tracer("postpilot/orchestrators")

// CalendarStoreForOrchestrator defines the store interface needed by the bulk engine.
type CalendarStoreForOrchestrator interface {
	GetByID(ctx context.Context, id string) (calendar.Event, error)
	Reschedule(ctx context.Context, tenantID, id string, startAt, endAt, now time.Time) error
	Delete(ctx context.Context, tenantID, id string) error
	ListInRange(ctx context.Context, tenantID string, from, to time.Time, f calendar.Filter) ([]calendar.Event, error)
}

// BulkMutationEngine applies one operation to many scheduled items with per-item outcomes.
type BulkMutationEngine struct {
	store CalendarStoreForOrchestrator
	now   func() time.Time
}

// NewBulkMutationEngine creates a bulk mutation engine.
func NewBulkMutationEngine(store CalendarStoreForOrchestrator, now func() time.Time) *BulkMutationEngine {
	return &BulkMutationEngine{store: store, now: now}
}

// Apply processes every submitted ID in order. One item failing never aborts the rest.
// PRE: req passes bulk.Request.Validate
// POST: every submitted ID lands in exactly one of Succeeded or Failed;
// no item outside req.TenantID is read back, moved or deleted
func (e *BulkMutationEngine) Apply(ctx context.Context, req bulk.Request) (bulk.Outcome, error) {
	if err := req.Validate(); err != nil {
		return bulk.Outcome{}, err
	}

	ctx, span := tracer.Start(ctx, "bulk.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("bulk.operation", req.Operation),
		attribute.String("tenant.id", req.TenantID),
		attribute.Int("bulk.items", len(req.ItemIDs)),
	)

	outcome := bulk.Outcome{Succeeded: []string{}, Failed: []bulk.Failure{}}
	for _, id := range req.ItemIDs {
		if reason := e.applyOne(ctx, req, id); reason != "" {
			outcome.Fail(id, reason)
			continue
		}
		outcome.Succeed(id)
	}

	span.SetAttributes(
		attribute.Int("bulk.succeeded", outcome.SuccessCount()),
		attribute.Int("bulk.failed", outcome.FailureCount()),
	)
	if !outcome.IsFullSuccess() {
		span.SetStatus(codes.Error, "partial failure")
	}
	slog.Info("bulk_apply_complete", "operation", req.Operation, "tenant_id", req.TenantID,
		"user_id", req.UserID, "succeeded", outcome.SuccessCount(), "failed", outcome.FailureCount())
	return outcome, nil
}

// applyOne returns an empty reason on success.
func (e *BulkMutationEngine) applyOne(ctx context.Context, req bulk.Request, id string) string {
	if strings.TrimSpace(id) == "" {
		return bulk.ReasonNotFound
	}
	ev, err := e.store.GetByID(ctx, id)
	if errors.Is(err, calendar.ErrNotFound) {
		return bulk.ReasonNotFound
	}
	if err != nil {
		slog.Error("bulk_item_lookup_failed", "item_id", id, "error", err.Error())
		return err.Error()
	}
	if !ev.BelongsTo(req.TenantID) {
		return bulk.ReasonForeignTenant
	}

	switch req.Operation {
	case bulk.OperationMove:
		if err := ev.Reschedule(req.NewDate, e.now()); err != nil {
			return reasonFor(err)
		}
		err = e.store.Reschedule(ctx, req.TenantID, id, ev.StartAt, ev.EndAt, ev.UpdatedAt)
	case bulk.OperationDelete:
		err = e.store.Delete(ctx, req.TenantID, id)
	}
	if err != nil {
		return reasonFor(err)
	}
	return ""
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, calendar.ErrAlreadyPublished):
		return bulk.ReasonAlreadyPublished
	case errors.Is(err, calendar.ErrNotFound):
		// deleted or published between the lookup and the write
		return bulk.ReasonNotFound
	default:
		return err.Error()
	}
}

// EventsInRange returns the tenant's scheduled items overlapping [start, end].
// PRE: tenantID is non-empty, end is not before start
// POST: only items owned by tenantID that pass f, ordered by start
func (e *BulkMutationEngine) EventsInRange(ctx context.Context, tenantID string, start, end time.Time, f calendar.Filter) ([]calendar.Event, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", bulk.ErrInvalidRequest)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: range end is before start", bulk.ErrInvalidRequest)
	}

	events, err := e.store.ListInRange(ctx, tenantID, start, end, f)
	if err != nil {
		return nil, fmt.Errorf("list events in range: %w", err)
	}
	visible := make([]calendar.Event, 0, len(events))
	for _, ev := range events {
		if ev.BelongsTo(tenantID) && f.Matches(ev) && ev.Overlaps(start, end) {
			visible = append(visible, ev)
		}
	}
	return visible, nil
}
