package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "postpilot/internal/adapters/email"
	domain "postpilot/internal/domain/outbox"
)

// OutboxStoreForOrchestrator defines the outbox operations the processor needs.
type OutboxStoreForOrchestrator interface {
	Save(ctx context.Context, e domain.Entry) error
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)
}

// ActionExecutor replays one kind of queued side effect.
type ActionExecutor interface {
	// Execute runs the action and returns the provider's id for it.
	Execute(ctx context.Context, payload string) (string, error)
}

// OutboxProcessor queues side effects that failed inline and replays them with backoff.
type OutboxProcessor struct {
	store      OutboxStoreForOrchestrator
	executors  map[string]ActionExecutor
	generateID func() string
	now        func() time.Time
	baseDelay  time.Duration
	maxDelay   time.Duration
	batchSize  int
}

// NewOutboxProcessor creates a new outbox processor.
func NewOutboxProcessor(store OutboxStoreForOrchestrator, executors map[string]ActionExecutor, generateID func() string, now func() time.Time) *OutboxProcessor {
	return &OutboxProcessor{
		store:      store,
		executors:  executors,
		generateID: generateID,
		now:        now,
		baseDelay:  30 * time.Second,
		maxDelay:   1 * time.Hour,
		batchSize:  10,
	}
}

// Enqueue stores payload as JSON for later replay by the executor registered for actionType.
// POST: a pending entry exists, or an error is returned and nothing was written
func (p *OutboxProcessor) Enqueue(ctx context.Context, tenantID, actionType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	e := domain.Entry{
		ID:         p.generateID(),
		TenantID:   tenantID,
		ActionType: actionType,
		Payload:    string(raw),
		Status:     domain.StatusPending,
		CreatedAt:  p.now(),
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := p.store.Save(ctx, e); err != nil {
		return fmt.Errorf("save outbox entry: %w", err)
	}
	slog.Info("outbox_enqueued", "entry_id", e.ID, "tenant_id", tenantID, "action_type", actionType)
	return nil
}

// ProcessPending replays the oldest due entries.
// POST: each attempted entry is saved as done, retrying or failed; a failure in one
// entry does not stop the batch
func (p *OutboxProcessor) ProcessPending(ctx context.Context) error {
	entries, err := p.store.ListPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("list pending outbox entries: %w", err)
	}

	for _, entry := range entries {
		if err := p.processEntry(ctx, entry); err != nil {
			slog.Error("outbox_process_failed", "entry_id", entry.ID, "action_type", entry.ActionType, "error", err.Error())
		}
	}
	return nil
}

func (p *OutboxProcessor) processEntry(ctx context.Context, entry domain.Entry) error {
	now := p.now()
	if !entry.IsDue(now, p.baseDelay, p.maxDelay) {
		return nil
	}

	entry.MarkAttempt(now)
	executor, ok := p.executors[entry.ActionType]
	if !ok {
		entry.Attempts = entry.MaxAttempts
		entry.MarkFailed(fmt.Errorf("no executor registered for action type: %s", entry.ActionType))
		return p.store.Save(ctx, entry)
	}

	externalID, err := executor.Execute(ctx, entry.Payload)
	if err != nil {
		entry.MarkFailed(err)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "attempt", entry.Attempts, "status", entry.Status, "error", err.Error())
	} else {
		entry.MarkSuccess(externalID)
		slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "action_type", entry.ActionType, "external_id", externalID)
	}
	return p.store.Save(ctx, entry)
}

// AlertEmailPayload is the replayable form of an alert email.
type AlertEmailPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// EmailExecutor replays alert emails through the configured sender.
type EmailExecutor struct {
	Sender emailAdapter.Sender
}

// Execute sends the email described by payload.
// PRE: payload is JSON matching AlertEmailPayload
// POST: returns the provider message id
func (e *EmailExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var p AlertEmailPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	if len(p.To) == 0 {
		return "", errors.New("alert email has no recipient")
	}
	receipt, err := e.Sender.Send(ctx, emailAdapter.Message{To: p.To, Subject: p.Subject, HTML: p.HTML})
	if err != nil {
		return "", err
	}
	return receipt.MessageID, nil
}

// DefaultWorkerInterval is used when StartBackgroundWorker gets a non-positive interval.
const DefaultWorkerInterval = time.Minute

// StartBackgroundWorker processes the outbox every interval until ctx is done.
// POST: returns a channel closed once the worker has exited
func StartBackgroundWorker(ctx context.Context, processor *OutboxProcessor, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		slog.Warn("outbox_worker_interval_invalid", "interval", interval.String(), "using", DefaultWorkerInterval.String())
		interval = DefaultWorkerInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
				if err := processor.ProcessPending(runCtx); err != nil {
					slog.Error("outbox_background_process_failed", "error", err.Error())
				}
				cancel()
			case <-ctx.Done():
				slog.Info("outbox_background_worker_stopped")
				return
			}
		}
	}()
	return done
}
