package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"postpilot/internal/application/orchestrators"
	"postpilot/internal/domain/platform"
	"postpilot/internal/domain/postlog"
	"postpilot/internal/domain/publication"
)

type accountDTO struct {
	ID          string `json:"id" validate:"required"`
	Platform    string `json:"platform" validate:"required"`
	DisplayName string `json:"display_name"`
}

type mediaDTO struct {
	ID         string                   `json:"id" validate:"required"`
	URL        string                   `json:"url" validate:"required,url"`
	Descriptor platform.MediaDescriptor `json:"descriptor"`
}

type publicationDTO struct {
	ID               string                    `json:"id" validate:"required"`
	CampaignID       string                    `json:"campaign_id"`
	Title            string                    `json:"title"`
	Body             string                    `json:"body"`
	ScheduledAt      time.Time                 `json:"scheduled_at"`
	PlatformSettings map[string]map[string]any `json:"platform_settings"`
	Accounts         []accountDTO              `json:"accounts" validate:"required,min=1,dive"`
	MediaFiles       []mediaDTO                `json:"media_files" validate:"dive"`
}

type publishRequest struct {
	Publication publicationDTO `json:"publication"`
	AccountID   string         `json:"account_id" validate:"required"`
	MediaFileID string         `json:"media_file_id"`
	// OwnerEmail receives the alert if this attempt exhausts the record's retries.
	OwnerEmail string `json:"owner_email" validate:"omitempty,email"`
}

type publishResponse struct {
	PostLog         postLogView      `json:"post_log"`
	Verdict         platform.Verdict `json:"verdict"`
	ContentAdjusted bool             `json:"content_adjusted"`
}

func (d publicationDTO) toDomain(tenantID, userID string) publication.Publication {
	p := publication.Publication{
		ID: d.ID, TenantID: tenantID, UserID: userID, CampaignID: d.CampaignID,
		Title: d.Title, Body: d.Body, ScheduledAt: d.ScheduledAt, PlatformSettings: d.PlatformSettings,
	}
	for _, a := range d.Accounts {
		p.Accounts = append(p.Accounts, publication.SocialAccount{ID: a.ID, Platform: a.Platform, DisplayName: a.DisplayName})
	}
	for _, m := range d.MediaFiles {
		p.MediaFiles = append(p.MediaFiles, publication.MediaFile{ID: m.ID, URL: m.URL, Descriptor: m.Descriptor})
	}
	return p
}

// handlePublish handles POST /api/publish, running one delivery attempt for one account.
// POST: 200 with the slot's post log whether it published or failed; 400 for a malformed
// publication; 409 when the slot is already published, out of retries or held by another
// workspace; 503 when no platform gateway is configured
func (a *api) handlePublish(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if a.deps.Publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "publishing is not configured")
		return
	}
	var body publishRequest
	if !decodeAndValidate(w, r, &body) {
		return
	}

	var alerts *orchestrators.RetryExhaustedNotifier
	if a.deps.AlertSender != nil && body.OwnerEmail != "" {
		owner := body.OwnerEmail
		alerts = orchestrators.NewRetryExhaustedNotifier(a.deps.AlertSender,
			func(context.Context, string, string) (string, error) { return owner, nil })
		if a.deps.AlertQueue != nil {
			alerts = alerts.WithQueue(a.deps.AlertQueue)
		}
	}

	result, err := orchestrators.ExecutePublishAttempt(r.Context(), orchestrators.PublishAttemptInput{
		Publication: body.Publication.toDomain(tenantID, userID),
		AccountID:   body.AccountID,
		MediaFileID: body.MediaFileID,
	}, orchestrators.PublishAttemptDeps{PostLogs: a.deps.PostLogs, Publisher: a.deps.Publisher, Alerts: alerts})

	switch {
	case errors.Is(err, publication.ErrUnknownAccount), errors.Is(err, publication.ErrUnknownMedia),
		errors.Is(err, publication.ErrNoAccounts), errors.Is(err, publication.ErrMissingIdentity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, postlog.ErrAlreadyPublished):
		writeError(w, http.StatusConflict, "this post is already on the platform")
	case errors.Is(err, postlog.ErrRetryLimitExceeded):
		writeError(w, http.StatusConflict, "retry limit reached; this post needs manual attention")
	case errors.Is(err, postlog.ErrRecordNotFound):
		writeError(w, http.StatusConflict, "this delivery slot belongs to another workspace")
	case err != nil:
		internalError(w, err)
	default:
		writeJSON(w, http.StatusOK, publishResponse{
			PostLog:         toPostLogView(result.Record),
			Verdict:         result.Verdict,
			ContentAdjusted: result.ContentAdjusted,
		})
	}
}
