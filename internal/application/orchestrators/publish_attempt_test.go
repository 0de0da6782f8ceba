package orchestrators

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emailAdapter "postpilot/internal/adapters/email"
	"postpilot/internal/domain/platform"
	"postpilot/internal/domain/postlog"
	"postpilot/internal/domain/publication"
)

// fakePublisher records requests and answers with a fixed result.
type fakePublisher struct {
	resp     postlog.PlatformResponse
	err      error
	requests []PublishRequest
}

func (f *fakePublisher) Publish(_ context.Context, req PublishRequest) (postlog.PlatformResponse, error) {
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func reelPublication(accountPlatform string) publication.Publication {
	return publication.Publication{
		ID: "42", TenantID: "tenant-a", UserID: "user-1", CampaignID: "c1",
		Body:             `<p>Launch day</p><script>alert(1)</script>`,
		PlatformSettings: map[string]map[string]any{"7": {"type": "reel", "share_to_feed": true}},
		Accounts:         []publication.SocialAccount{{ID: "7", Platform: accountPlatform}},
		MediaFiles: []publication.MediaFile{{
			ID: "3", URL: "https://cdn.example/launch.mp4",
			Descriptor: platform.MediaDescriptor{Type: platform.MediaTypeVideo, Width: 1080, Height: 1920, DurationSeconds: 30, SizeBytes: 40 << 20},
		}},
	}
}

func publishDeps(store *mockPostLogStore, pub PlatformPublisher, sender emailAdapter.Sender) PublishAttemptDeps {
	lookup := func(_ context.Context, tenantID, userID string) (string, error) {
		return userID + "@" + tenantID + ".example", nil
	}
	return PublishAttemptDeps{
		PostLogs:  NewPostLogManager(store, fixedID, fixedNow),
		Publisher: pub,
		Alerts:    NewRetryExhaustedNotifier(sender, lookup),
	}
}

// TestExecutePublishAttempt_Success tests the happy path through sanitizing, resolving and publishing.
func TestExecutePublishAttempt_Success(t *testing.T) {
	store := newMockPostLogStore()
	publisher := &fakePublisher{resp: postlog.PlatformResponse{PostID: "ig_1", PostURL: "https://instagram.com/reel/1", PostType: "reel"}}
	sender := emailAdapter.NewNoopSender()

	result, err := ExecutePublishAttempt(context.Background(), PublishAttemptInput{
		Publication: reelPublication(platform.Instagram), AccountID: "7", MediaFileID: "3",
	}, publishDeps(store, publisher, sender))
	require.NoError(t, err)

	assert.Equal(t, postlog.StatusPublished, result.Record.Status)
	assert.Equal(t, "ig_1", result.Record.PlatformPostID)
	assert.True(t, result.ContentAdjusted)
	assert.Equal(t, "<p>Launch day</p>", result.Record.Content)
	assert.True(t, result.Verdict.IsCompatible)

	require.Len(t, publisher.requests, 1)
	assert.Equal(t, platform.TypeReel, publisher.requests[0].ContentType)
	assert.Equal(t, postlog.StatusPublishing, publisher.requests[0].Record.Status)
	assert.Equal(t, true, result.Record.PlatformSettings["share_to_feed"])
	assert.Equal(t, []string{"https://cdn.example/launch.mp4"}, result.Record.MediaURLs)
	assert.Empty(t, sender.Sent())
}

// TestExecutePublishAttempt_IncompatibleMedia tests that resolver errors fail the log without publishing.
func TestExecutePublishAttempt_IncompatibleMedia(t *testing.T) {
	store := newMockPostLogStore()
	publisher := &fakePublisher{}
	pub := reelPublication(platform.YouTube)

	result, err := ExecutePublishAttempt(context.Background(), PublishAttemptInput{
		Publication: pub, AccountID: "7", MediaFileID: "3",
	}, publishDeps(store, publisher, emailAdapter.NewNoopSender()))
	require.NoError(t, err)

	assert.Empty(t, publisher.requests)
	assert.False(t, result.Verdict.IsCompatible)
	assert.Equal(t, postlog.StatusFailed, result.Record.Status)
	assert.Contains(t, result.Record.ErrorMessage, `content type "reel" is not supported by youtube`)
}

// TestExecutePublishAttempt_ExhaustedFailureAlertsOwner tests the email sent when no retries remain.
func TestExecutePublishAttempt_ExhaustedFailureAlertsOwner(t *testing.T) {
	store := newMockPostLogStore()
	store.records[postlog.Key{PublicationID: "42", AccountID: "7", MediaFileID: "3"}] = postlog.Record{
		ID: "log-1", TenantID: "tenant-a", PublicationID: "42", AccountID: "7", MediaFileID: "3",
		Platform: platform.Instagram, Status: postlog.StatusPending, RetryCount: postlog.MaxRetries,
	}
	publisher := &fakePublisher{err: errors.New("media container expired")}
	sender := emailAdapter.NewNoopSender()

	result, err := ExecutePublishAttempt(context.Background(), PublishAttemptInput{
		Publication: reelPublication(platform.Instagram), AccountID: "7", MediaFileID: "3",
	}, publishDeps(store, publisher, sender))
	require.NoError(t, err)

	assert.Equal(t, "log-1", result.Record.ID)
	assert.Equal(t, postlog.StatusFailed, result.Record.Status)
	assert.Equal(t, "media container expired", result.Record.ErrorMessage)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"user-1@tenant-a.example"}, sent[0].To)
	assert.Contains(t, sent[0].HTML, "media container expired")
	assert.NotContains(t, sent[0].HTML, "<script")
}

// TestExecutePublishAttempt_RefusesSettledSlots tests that exhausted and published slots never reach the platform.
func TestExecutePublishAttempt_RefusesSettledSlots(t *testing.T) {
	key := postlog.Key{PublicationID: "42", AccountID: "7", MediaFileID: "3"}
	tests := []struct {
		name    string
		seeded  postlog.Record
		wantErr error
	}{
		{
			name: "exhausted failure",
			seeded: postlog.Record{ID: "log-1", TenantID: "tenant-a", PublicationID: "42", AccountID: "7", MediaFileID: "3",
				Platform: platform.Instagram, Status: postlog.StatusFailed, ErrorMessage: "token expired", RetryCount: postlog.MaxRetries},
			wantErr: postlog.ErrRetryLimitExceeded,
		},
		{
			name: "already published",
			seeded: postlog.Record{ID: "log-1", TenantID: "tenant-a", PublicationID: "42", AccountID: "7", MediaFileID: "3",
				Platform: platform.Instagram, Status: postlog.StatusPublished, PlatformPostID: "ig_1"},
			wantErr: postlog.ErrAlreadyPublished,
		},
		{
			name: "removed on platform",
			seeded: postlog.Record{ID: "log-1", TenantID: "tenant-a", PublicationID: "42", AccountID: "7", MediaFileID: "3",
				Platform: platform.Instagram, Status: postlog.StatusRemovedOnPlatform, PlatformPostID: "ig_1"},
			wantErr: postlog.ErrAlreadyPublished,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockPostLogStore()
			store.records[key] = tt.seeded
			publisher := &fakePublisher{err: errors.New("should not be called")}
			sender := emailAdapter.NewNoopSender()

			_, err := ExecutePublishAttempt(context.Background(), PublishAttemptInput{
				Publication: reelPublication(platform.Instagram), AccountID: "7", MediaFileID: "3",
			}, publishDeps(store, publisher, sender))
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Empty(t, publisher.requests)
			assert.Empty(t, sender.Sent())
			assert.Equal(t, tt.seeded, store.records[key])
			assert.Zero(t, store.saves)
		})
	}
}

// TestExecutePublishAttempt_FailedSlotSpendsRetry tests that re-publishing a failed slot counts as a retry.
func TestExecutePublishAttempt_FailedSlotSpendsRetry(t *testing.T) {
	store := newMockPostLogStore()
	key := postlog.Key{PublicationID: "42", AccountID: "7", MediaFileID: "3"}
	store.records[key] = postlog.Record{
		ID: "log-1", TenantID: "tenant-a", PublicationID: "42", AccountID: "7", MediaFileID: "3",
		Platform: platform.Instagram, Status: postlog.StatusFailed, RetryCount: 1,
	}
	publisher := &fakePublisher{resp: postlog.PlatformResponse{PostID: "ig_2"}}

	result, err := ExecutePublishAttempt(context.Background(), PublishAttemptInput{
		Publication: reelPublication(platform.Instagram), AccountID: "7", MediaFileID: "3",
	}, publishDeps(store, publisher, emailAdapter.NewNoopSender()))
	require.NoError(t, err)

	assert.Equal(t, "log-1", result.Record.ID)
	assert.Equal(t, postlog.StatusPublished, result.Record.Status)
	assert.Equal(t, 2, result.Record.RetryCount)
	assert.Equal(t, fixedNow(), result.Record.LastRetryAt)
	require.Len(t, publisher.requests, 1)
}

// TestExecutePublishAttempt_RetryableFailureNoAlert tests that a failure with retries left stays quiet.
func TestExecutePublishAttempt_RetryableFailureNoAlert(t *testing.T) {
	sender := emailAdapter.NewNoopSender()
	result, err := ExecutePublishAttempt(context.Background(), PublishAttemptInput{
		Publication: reelPublication(platform.Instagram), AccountID: "7", MediaFileID: "3",
	}, publishDeps(newMockPostLogStore(), &fakePublisher{err: errors.New("rate limited")}, sender))
	require.NoError(t, err)
	assert.Equal(t, postlog.StatusFailed, result.Record.Status)
	assert.Empty(t, sender.Sent())
}

// TestExecutePublishAttempt_BadInput tests unknown accounts and media.
func TestExecutePublishAttempt_BadInput(t *testing.T) {
	deps := publishDeps(newMockPostLogStore(), &fakePublisher{}, emailAdapter.NewNoopSender())
	pub := reelPublication(platform.Instagram)

	_, err := ExecutePublishAttempt(context.Background(), PublishAttemptInput{Publication: pub, AccountID: "99"}, deps)
	assert.Error(t, err)

	_, err = ExecutePublishAttempt(context.Background(), PublishAttemptInput{Publication: pub, AccountID: "7", MediaFileID: "99"}, deps)
	assert.Error(t, err)

	pub.Accounts = nil
	_, err = ExecutePublishAttempt(context.Background(), PublishAttemptInput{Publication: pub, AccountID: "7"}, deps)
	assert.ErrorIs(t, err, publication.ErrNoAccounts)
}

// TestExecuteRetryPostLog tests the user-triggered retry path.
func TestExecuteRetryPostLog(t *testing.T) {
	store := newMockPostLogStore()
	exhausted := failedRecord(postlog.MaxRetries)
	exhausted.ID, exhausted.AccountID = "log-2", "8"
	first := failedRecord(1)
	store.records[first.Key()] = first
	store.records[exhausted.Key()] = exhausted
	deps := RetryPostLogDeps{PostLogs: NewPostLogManager(store, fixedID, fixedNow)}
	ctx := context.Background()

	rec, err := ExecuteRetryPostLog(ctx, RetryPostLogInput{TenantID: "tenant-a", LogID: "log-1"}, deps)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.RetryCount)
	assert.Equal(t, postlog.StatusPending, rec.Status)

	_, err = ExecuteRetryPostLog(ctx, RetryPostLogInput{TenantID: "tenant-a", LogID: "log-2"}, deps)
	assert.ErrorIs(t, err, postlog.ErrRetryLimitExceeded)

	_, err = ExecuteRetryPostLog(ctx, RetryPostLogInput{TenantID: "tenant-b", LogID: "log-1"}, deps)
	assert.ErrorIs(t, err, postlog.ErrRecordNotFound)

	_, err = ExecuteRetryPostLog(ctx, RetryPostLogInput{TenantID: "tenant-a"}, deps)
	assert.Error(t, err)
}
