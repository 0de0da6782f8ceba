package outbox

import (
	"errors"
	"time"
)

// Status constants for outbox entry lifecycle.
const (
	StatusPending  = "pending"
	StatusRetrying = "retrying"
	StatusDone     = "done"
	StatusFailed   = "failed"
)

// ActionTypeAlertEmail replays a retry-exhausted alert that the mail provider refused.
const ActionTypeAlertEmail = "alert_email"

// DefaultMaxAttempts applies when an entry is queued without its own cap.
const DefaultMaxAttempts = 5

// Domain errors.
var (
	ErrEmptyActionType = errors.New("action type is required")
	ErrEmptyPayload    = errors.New("payload is required")
	ErrNotFound        = errors.New("outbox entry not found")
)

// Entry is one side effect waiting to be replayed.
type Entry struct {
	ID              string
	TenantID        string
	ActionType      string
	Payload         string // JSON, decoded by the executor for ActionType
	Status          string
	Attempts        int
	MaxAttempts     int
	LastAttemptedAt time.Time
	CreatedAt       time.Time
	ExternalID      string // provider id once delivered
	ErrorMessage    string
}

// Validate checks that the Entry has valid data.
// POST: MaxAttempts defaults to DefaultMaxAttempts when unset
func (e *Entry) Validate() error {
	if e.ActionType == "" {
		return ErrEmptyActionType
	}
	if e.Payload == "" {
		return ErrEmptyPayload
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}

// CanRetry reports whether the entry has attempts left.
func (e *Entry) CanRetry() bool {
	return (e.Status == StatusPending || e.Status == StatusRetrying) && e.Attempts < e.MaxAttempts
}

// IsDue reports whether the backoff since the last attempt has elapsed.
func (e *Entry) IsDue(now time.Time, baseDelay, maxDelay time.Duration) bool {
	if e.LastAttemptedAt.IsZero() {
		return true
	}
	return !now.Before(e.LastAttemptedAt.Add(e.NextRetryDelay(baseDelay, maxDelay)))
}

// MarkAttempt records that an attempt is starting.
// POST: Attempts incremented, LastAttemptedAt is now, status retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess closes the entry.
func (e *Entry) MarkSuccess(externalID string) {
	e.Status = StatusDone
	e.ExternalID = externalID
	e.ErrorMessage = ""
}

// MarkFailed records the attempt's error. The entry only becomes failed once
// its attempts are spent; before that it stays retrying.
func (e *Entry) MarkFailed(err error) {
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
	}
}

// NextRetryDelay is 2^attempts * baseDelay, capped at maxDelay.
func (e *Entry) NextRetryDelay(baseDelay time.Duration, maxDelay time.Duration) time.Duration {
	if e.Attempts >= 30 {
		return maxDelay
	}
	delay := baseDelay * (1 << e.Attempts)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}
