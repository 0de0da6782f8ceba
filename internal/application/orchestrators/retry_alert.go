package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	emailAdapter "postpilot/internal/adapters/email"
	"postpilot/internal/domain/content"
	"postpilot/internal/domain/outbox"
	"postpilot/internal/domain/postlog"
)

// AlertQueue holds alerts the mail provider refused so they can be replayed later.
type AlertQueue interface {
	Enqueue(ctx context.Context, tenantID, actionType string, payload any) error
}

// OwnerEmailLookup resolves the address of the user who owns a post log.
type OwnerEmailLookup func(ctx context.Context, tenantID, userID string) (string, error)

// RetryExhaustedNotifier emails the owner when a record fails with no retries left.
type RetryExhaustedNotifier struct {
	sender emailAdapter.Sender
	lookup OwnerEmailLookup
	queue  AlertQueue
}

// NewRetryExhaustedNotifier creates a notifier.
func NewRetryExhaustedNotifier(sender emailAdapter.Sender, lookup OwnerEmailLookup) *RetryExhaustedNotifier {
	return &RetryExhaustedNotifier{sender: sender, lookup: lookup}
}

// WithQueue makes the notifier queue alerts whose send failed instead of dropping them.
func (n *RetryExhaustedNotifier) WithQueue(q AlertQueue) *RetryExhaustedNotifier {
	n.queue = q
	return n
}

// NotifyIfExhausted sends one alert for a failed record that can no longer be retried.
// A refused send is queued when a queue is configured and logged otherwise.
// POST: returns true when an email was handed to the sender
func (n *RetryExhaustedNotifier) NotifyIfExhausted(ctx context.Context, r postlog.Record) bool {
	if n == nil || r.Status != postlog.StatusFailed || r.CanRetry() {
		return false
	}

	to, err := n.lookup(ctx, r.TenantID, r.UserID)
	if err != nil || to == "" {
		slog.Warn("retry_alert_skipped", "post_log_id", r.ID, "reason", "no owner email")
		return false
	}

	body := content.RenderMarkdown(fmt.Sprintf(
		"**Publishing to %s failed after %d retries.**\n\nPublication: `%s`\n\nLast error:\n\n> %s\n\nNo automatic retries remain.",
		r.Platform, r.RetryCount, r.PublicationID, r.ErrorMessage))

	msg := emailAdapter.Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Post to %s could not be published", r.Platform),
		HTML:    body.Content,
	}
	receipt, err := n.sender.Send(ctx, msg)
	if err != nil {
		slog.Error("retry_alert_failed", "post_log_id", r.ID, "error", err.Error())
		n.enqueue(ctx, r, msg)
		return false
	}
	slog.Info("retry_alert_sent", "post_log_id", r.ID, "message_id", receipt.MessageID)
	return true
}

func (n *RetryExhaustedNotifier) enqueue(ctx context.Context, r postlog.Record, msg emailAdapter.Message) {
	if n.queue == nil {
		return
	}
	payload := AlertEmailPayload{To: msg.To, Subject: msg.Subject, HTML: msg.HTML}
	if err := n.queue.Enqueue(ctx, r.TenantID, outbox.ActionTypeAlertEmail, payload); err != nil {
		slog.Error("retry_alert_queue_failed", "post_log_id", r.ID, "error", err.Error())
	}
}
