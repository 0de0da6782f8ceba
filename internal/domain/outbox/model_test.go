package outbox

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// TestEntry_ValidateDefaultsMaxAttempts verifies required fields and the attempt default.
func TestEntry_ValidateDefaultsMaxAttempts(t *testing.T) {
	e := Entry{ActionType: ActionTypeAlertEmail, Payload: "{}", CreatedAt: t0}
	assert.NoError(t, e.Validate())
	assert.Equal(t, DefaultMaxAttempts, e.MaxAttempts)

	assert.ErrorIs(t, (&Entry{Payload: "{}", CreatedAt: t0}).Validate(), ErrEmptyActionType)
	assert.ErrorIs(t, (&Entry{ActionType: ActionTypeAlertEmail, CreatedAt: t0}).Validate(), ErrEmptyPayload)
}

// TestEntry_FailureLifecycle verifies an entry stays retrying until attempts are spent.
func TestEntry_FailureLifecycle(t *testing.T) {
	e := Entry{Status: StatusPending, MaxAttempts: 2}

	e.MarkAttempt(t0)
	e.MarkFailed(errors.New("smtp 451"))
	assert.Equal(t, StatusRetrying, e.Status)
	assert.True(t, e.CanRetry())

	e.MarkAttempt(t0.Add(time.Minute))
	e.MarkFailed(errors.New("smtp 451"))
	assert.Equal(t, StatusFailed, e.Status)
	assert.False(t, e.CanRetry())
	assert.Equal(t, "smtp 451", e.ErrorMessage)
}

// TestEntry_Backoff verifies exponential delay with a cap.
func TestEntry_Backoff(t *testing.T) {
	base, ceiling := 30*time.Second, 10*time.Minute
	e := Entry{Attempts: 1, LastAttemptedAt: t0}

	assert.Equal(t, time.Minute, e.NextRetryDelay(base, ceiling))
	assert.False(t, e.IsDue(t0.Add(59*time.Second), base, ceiling))
	assert.True(t, e.IsDue(t0.Add(time.Minute), base, ceiling))

	e.Attempts = 8
	assert.Equal(t, ceiling, e.NextRetryDelay(base, ceiling))

	fresh := Entry{}
	assert.True(t, fresh.IsDue(t0, base, ceiling), "never attempted is always due")
}

// TestEntry_MarkSuccessClearsError verifies a delivered entry keeps the provider id.
func TestEntry_MarkSuccessClearsError(t *testing.T) {
	e := Entry{Status: StatusRetrying, ErrorMessage: "timeout"}
	e.MarkSuccess("msg-42")

	assert.Equal(t, StatusDone, e.Status)
	assert.Equal(t, "msg-42", e.ExternalID)
	assert.Empty(t, e.ErrorMessage)
}
