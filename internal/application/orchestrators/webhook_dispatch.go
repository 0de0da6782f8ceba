package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	webhookAdapter "postpilot/internal/adapters/webhook"
	"postpilot/internal/domain/webhook"
)

// DeliveryLogStoreForOrchestrator defines the store interface needed by the dispatcher.
type DeliveryLogStoreForOrchestrator interface {
	Insert(ctx context.Context, l webhook.DeliveryLog) error
}

// WebhookDispatcher posts notifications to chat webhooks and records every attempt.
type WebhookDispatcher struct {
	poster     webhookAdapter.Poster
	logs       DeliveryLogStoreForOrchestrator
	generateID func() string
	now        func() time.Time
}

// NewWebhookDispatcher creates a webhook dispatcher.
func NewWebhookDispatcher(poster webhookAdapter.Poster, logs DeliveryLogStoreForOrchestrator, generateID func() string, now func() time.Time) *WebhookDispatcher {
	return &WebhookDispatcher{poster: poster, logs: logs, generateID: generateID, now: now}
}

// Send delivers one notification. Failures are logged and recorded, never returned.
// PRE: none
// POST: with a tenant, exactly one delivery log row is written for the attempt;
// without one, nothing is sent or written. The returned row is zero when skipped.
func (d *WebhookDispatcher) Send(ctx context.Context, in webhook.SendInput) webhook.DeliveryLog {
	if in.TenantID == "" {
		slog.Warn("webhook_skipped", "reason", "no tenant", "channel", in.Channel, "event_type", in.EventLabel)
		return webhook.DeliveryLog{}
	}

	entry := webhook.DeliveryLog{
		ID:        d.generateID(),
		TenantID:  in.TenantID,
		Channel:   in.Channel,
		EventType: in.EventLabel,
		CreatedAt: d.now(),
	}

	strategy, ok := webhook.StrategyFor(in.Channel)
	if !ok {
		entry.Response = fmt.Sprintf("%s: %q", webhook.ErrUnsupportedChannel, in.Channel)
		d.record(ctx, entry)
		return entry
	}

	payload, err := webhook.MarshalPayload(strategy, in.Title, in.Body)
	if err != nil {
		entry.Response = err.Error()
		d.record(ctx, entry)
		return entry
	}
	entry.Payload = string(payload)

	ctx, span := tracer.Start(ctx, "webhook.send")
	span.SetAttributes(
		attribute.String("webhook.channel", in.Channel),
		attribute.String("tenant.id", in.TenantID),
	)
	resp, err := d.poster.Post(ctx, in.URL, payload)
	if err != nil {
		// a broken body still carries the status the endpoint answered with
		entry.StatusCode = resp.StatusCode
		entry.Response = err.Error()
		if resp.Body != "" {
			entry.Response += ": " + resp.Body
		}
		span.RecordError(err)
	} else {
		entry.StatusCode = resp.StatusCode
		entry.Response = resp.Body
		entry.Success = strategy.Succeeded(resp)
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	}
	if !entry.Success {
		span.SetStatus(codes.Error, "webhook delivery failed")
	}
	span.End()

	d.record(ctx, entry)
	return entry
}

func (d *WebhookDispatcher) record(ctx context.Context, entry webhook.DeliveryLog) {
	if entry.Success {
		slog.Info("webhook_delivered", "channel", entry.Channel, "tenant_id", entry.TenantID,
			"event_type", entry.EventType, "status_code", entry.StatusCode)
	} else {
		slog.Warn("webhook_failed", "channel", entry.Channel, "tenant_id", entry.TenantID,
			"event_type", entry.EventType, "status_code", entry.StatusCode, "response", entry.Response)
	}
	if err := d.logs.Insert(ctx, entry); err != nil {
		slog.Error("webhook_log_write_failed", "delivery_id", entry.ID, "error", err.Error())
	}
}
