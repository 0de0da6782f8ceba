package web

import (
	"errors"
	"net/http"
	"time"

	"postpilot/internal/application/orchestrators"
	"postpilot/internal/application/projections"
	"postpilot/internal/domain/postlog"
)

type postLogView struct {
	ID               string         `json:"id"`
	PublicationID    string         `json:"publication_id"`
	AccountID        string         `json:"account_id"`
	Platform         string         `json:"platform"`
	Status           string         `json:"status"`
	PlatformPostID   string         `json:"platform_post_id,omitempty"`
	PlatformPostURL  string         `json:"platform_post_url,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	RetryCount       int            `json:"retry_count"`
	RetriesRemaining int            `json:"retries_remaining"`
	CanRetry         bool           `json:"can_retry"`
	LastRetryAt      *time.Time     `json:"last_retry_at,omitempty"`
	Engagement       map[string]int `json:"engagement,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func toPostLogView(r postlog.Record) postLogView {
	v := postLogView{
		ID: r.ID, PublicationID: r.PublicationID, AccountID: r.AccountID, Platform: r.Platform,
		Status: r.Status, PlatformPostID: r.PlatformPostID, PlatformPostURL: r.PlatformPostURL,
		ErrorMessage: r.ErrorMessage, RetryCount: r.RetryCount, RetriesRemaining: r.RetriesRemaining(),
		CanRetry: r.CanRetry(), Engagement: r.Engagement, UpdatedAt: r.UpdatedAt,
	}
	if !r.LastRetryAt.IsZero() {
		t := r.LastRetryAt
		v.LastRetryAt = &t
	}
	return v
}

// handleRetryPostLog handles POST /api/post-logs/{id}/retry.
// POST: 200 with the pending record; 404 when missing or foreign; 409 when retries are spent
func (a *api) handleRetryPostLog(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := requireTenant(w, r)
	if !ok {
		return
	}
	rec, err := orchestrators.ExecuteRetryPostLog(r.Context(),
		orchestrators.RetryPostLogInput{TenantID: tenantID, LogID: r.PathValue("id")},
		orchestrators.RetryPostLogDeps{PostLogs: a.deps.PostLogs},
	)
	switch {
	case errors.Is(err, postlog.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "post log not found")
	case errors.Is(err, postlog.ErrRetryLimitExceeded):
		writeError(w, http.StatusConflict, "this post cannot be retried")
	case err != nil:
		internalError(w, err)
	default:
		writeJSON(w, http.StatusOK, toPostLogView(rec))
	}
}

// handlePublicationStats handles GET /api/publications/{id}/stats.
func (a *api) handlePublicationStats(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := requireTenant(w, r)
	if !ok {
		return
	}
	stats, err := projections.GetPublicationStats(r.Context(),
		projections.DeliveryStatsDeps{PostLogStore: a.deps.StatsStore}, tenantID, r.PathValue("id"))
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleCampaignStats handles GET /api/campaigns/{id}/stats?user_id=.
func (a *api) handleCampaignStats(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := requireTenant(w, r)
	if !ok {
		return
	}
	stats, err := projections.GetCampaignStats(r.Context(),
		projections.DeliveryStatsDeps{PostLogStore: a.deps.StatsStore},
		tenantID, r.PathValue("id"), r.URL.Query().Get("user_id"))
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
