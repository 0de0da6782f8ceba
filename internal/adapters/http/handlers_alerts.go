package web

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"postpilot/internal/domain/outbox"
)

type failedAlertView struct {
	ID              string    `json:"id"`
	ActionType      string    `json:"action_type"`
	Attempts        int       `json:"attempts"`
	ErrorMessage    string    `json:"error_message"`
	LastAttemptedAt time.Time `json:"last_attempted_at"`
	Age             string    `json:"age"`
}

// handleFailedAlerts handles GET /api/alerts/failed?limit=, listing alert emails the outbox
// gave up on so the workspace can follow up by hand.
// POST: 200 with an empty list when no outbox is wired
func (a *api) handleFailedAlerts(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := requireTenant(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r, defaultListLimit, maxListLimit)
	if !ok {
		return
	}

	var entries []outbox.Entry
	if a.deps.FailedAlerts != nil {
		var err error
		if entries, err = a.deps.FailedAlerts.ListFailed(r.Context(), tenantID, limit); err != nil {
			internalError(w, err)
			return
		}
	}
	views := make([]failedAlertView, 0, len(entries))
	for _, e := range entries {
		views = append(views, failedAlertView{
			ID: e.ID, ActionType: e.ActionType, Attempts: e.Attempts, ErrorMessage: e.ErrorMessage,
			LastAttemptedAt: e.LastAttemptedAt,
			Age:             humanize.RelTime(e.LastAttemptedAt, a.deps.Now(), "ago", "from now"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": views})
}
