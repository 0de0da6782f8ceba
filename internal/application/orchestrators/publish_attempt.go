package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"postpilot/internal/domain/content"
	"postpilot/internal/domain/platform"
	"postpilot/internal/domain/postlog"
	"postpilot/internal/domain/publication"
)

// PublishRequest is what a platform integration receives for one delivery slot.
type PublishRequest struct {
	Record      postlog.Record
	Account     publication.SocialAccount
	ContentType string
}

// PlatformPublisher pushes one post to a social platform.
type PlatformPublisher interface {
	Publish(ctx context.Context, req PublishRequest) (postlog.PlatformResponse, error)
}

// PublishAttemptInput identifies the delivery slot to attempt.
type PublishAttemptInput struct {
	Publication publication.Publication
	AccountID   string
	MediaFileID string // empty publishes text only
}

// PublishAttemptDeps holds dependencies for PublishAttempt.
type PublishAttemptDeps struct {
	PostLogs  *PostLogManager
	Publisher PlatformPublisher
	Alerts    *RetryExhaustedNotifier // optional
}

// PublishAttemptResult reports what happened to the slot.
type PublishAttemptResult struct {
	Record          postlog.Record
	Verdict         platform.Verdict
	ContentAdjusted bool // the sanitizer changed the author's markup
}

// ExecutePublishAttempt runs one delivery of a publication to one account.
// Platform rejections are recorded on the post log and are not returned as errors.
// PRE: Publication passes Validate and lists AccountID
// POST: the slot's post log ends published or failed; an exhausted failure alerts the owner.
// A slot already on the platform returns postlog.ErrAlreadyPublished and an exhausted one
// postlog.ErrRetryLimitExceeded, both without touching the record or the platform
func ExecutePublishAttempt(ctx context.Context, input PublishAttemptInput, deps PublishAttemptDeps) (PublishAttemptResult, error) {
	pub := input.Publication
	if err := pub.Validate(); err != nil {
		return PublishAttemptResult{}, err
	}
	account, ok := findAccount(pub, input.AccountID)
	if !ok {
		return PublishAttemptResult{}, fmt.Errorf("account %s, publication %s: %w", input.AccountID, pub.ID, publication.ErrUnknownAccount)
	}
	var media publication.MediaFile
	if input.MediaFileID != "" {
		if media, ok = findMedia(pub, input.MediaFileID); !ok {
			return PublishAttemptResult{}, fmt.Errorf("media %s, publication %s: %w", input.MediaFileID, pub.ID, publication.ErrUnknownMedia)
		}
	}

	ctx, span := tracer.Start(ctx, "publish.attempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", pub.TenantID),
		attribute.String("publication.id", pub.ID),
		attribute.String("platform", account.Platform),
	)

	sanitized := content.Sanitize(pub.Body)
	cfg := platform.BuildConfiguration(account.Platform, media.Descriptor, pub.RequestedType(account.ID))

	settings := make(map[string]any, len(pub.SettingsFor(account.ID))+1)
	for k, v := range pub.SettingsFor(account.ID) {
		settings[k] = v
	}
	settings["type"] = cfg.SelectedType

	var mediaURLs []string
	if media.URL != "" {
		mediaURLs = []string{media.URL}
	}

	if err := claimable(ctx, deps.PostLogs, pub.TenantID, postlog.Key{
		PublicationID: pub.ID, AccountID: account.ID, MediaFileID: input.MediaFileID,
	}); err != nil {
		span.RecordError(err)
		return PublishAttemptResult{}, err
	}

	rec, err := deps.PostLogs.CreateOrReusePendingLog(ctx, CreateLogInput{
		TenantID:         pub.TenantID,
		UserID:           pub.UserID,
		PublicationID:    pub.ID,
		CampaignID:       pub.CampaignID,
		AccountID:        account.ID,
		MediaFileID:      input.MediaFileID,
		Platform:         account.Platform,
		Content:          sanitized.Content,
		MediaURLs:        mediaURLs,
		PlatformSettings: settings,
	})
	if err != nil {
		span.RecordError(err)
		return PublishAttemptResult{}, err
	}
	result := PublishAttemptResult{Verdict: cfg.Verdict, ContentAdjusted: sanitized.WasModified}

	if !cfg.Verdict.IsCompatible {
		rec, err = fail(ctx, deps, rec, strings.Join(cfg.Verdict.Errors, "; "))
		span.SetStatus(codes.Error, "incompatible media")
		result.Record = rec
		return result, err
	}

	rec, err = deps.PostLogs.MarkPublishing(ctx, rec)
	if err != nil {
		result.Record = rec
		return result, err
	}

	resp, pubErr := deps.Publisher.Publish(ctx, PublishRequest{Record: rec, Account: account, ContentType: cfg.SelectedType})
	if pubErr != nil {
		span.RecordError(pubErr)
		span.SetStatus(codes.Error, "platform rejected post")
		rec, err = fail(ctx, deps, rec, pubErr.Error())
		result.Record = rec
		return result, err
	}

	rec, err = deps.PostLogs.MarkPublished(ctx, rec, resp)
	result.Record = rec
	if err == nil {
		slog.Info("publish_attempt_complete", "post_log_id", rec.ID, "platform", rec.Platform,
			"platform_post_id", rec.PlatformPostID, "content_adjusted", sanitized.WasModified)
	}
	return result, err
}

// claimable refuses slots a new attempt must not take over. A failed slot with retries
// left is reset first, so re-publishing it spends one of its retries.
func claimable(ctx context.Context, logs *PostLogManager, tenantID string, key postlog.Key) error {
	existing, err := logs.GetSlot(ctx, tenantID, key)
	if errors.Is(err, postlog.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load delivery slot: %w", err)
	}
	if err := existing.AcceptsNewAttempt(); err != nil {
		slog.Warn("publish_attempt_refused", "post_log_id", existing.ID, "status", existing.Status,
			"retry_count", existing.RetryCount, "reason", err.Error())
		return fmt.Errorf("post log %s: %w", existing.ID, err)
	}
	if existing.Status == postlog.StatusFailed {
		if _, err := logs.ResetForRetry(ctx, existing); err != nil {
			return err
		}
	}
	return nil
}

func fail(ctx context.Context, deps PublishAttemptDeps, rec postlog.Record, message string) (postlog.Record, error) {
	rec, err := deps.PostLogs.MarkFailed(ctx, rec, message)
	if err != nil {
		return rec, err
	}
	deps.Alerts.NotifyIfExhausted(ctx, rec)
	return rec, nil
}

func findAccount(pub publication.Publication, id string) (publication.SocialAccount, bool) {
	for _, a := range pub.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return publication.SocialAccount{}, false
}

func findMedia(pub publication.Publication, id string) (publication.MediaFile, bool) {
	for _, m := range pub.MediaFiles {
		if m.ID == id {
			return m, true
		}
	}
	return publication.MediaFile{}, false
}

// RetryPostLogInput names the record a user asked to retry.
type RetryPostLogInput struct {
	TenantID string
	LogID    string
}

// RetryPostLogDeps holds dependencies for RetryPostLog.
type RetryPostLogDeps struct {
	PostLogs *PostLogManager
}

// ExecuteRetryPostLog re-queues a failed record for another attempt.
// PRE: TenantID and LogID are non-empty
// POST: record is pending with retry_count incremented, or postlog.ErrRetryLimitExceeded
// / postlog.ErrRecordNotFound is returned and nothing changes
func ExecuteRetryPostLog(ctx context.Context, input RetryPostLogInput, deps RetryPostLogDeps) (postlog.Record, error) {
	if input.TenantID == "" || input.LogID == "" {
		return postlog.Record{}, errors.New("tenant and post log id are required")
	}
	rec, err := deps.PostLogs.Get(ctx, input.TenantID, input.LogID)
	if err != nil {
		return postlog.Record{}, err
	}
	return deps.PostLogs.ResetForRetry(ctx, rec)
}
