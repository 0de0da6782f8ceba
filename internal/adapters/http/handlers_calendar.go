package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"postpilot/internal/domain/bulk"
	"postpilot/internal/domain/calendar"
)

type bulkApplyRequest struct {
	Operation string     `json:"operation"`
	ItemIDs   []string   `json:"item_ids"`
	NewDate   *time.Time `json:"new_date,omitempty"`
}

type bulkApplyResponse struct {
	bulk.Outcome
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failure_count"`
	Message      string `json:"message"`
}

type eventView struct {
	ID            string     `json:"id"`
	PublicationID string     `json:"publication_id"`
	CampaignID    string     `json:"campaign_id,omitempty"`
	Platform      string     `json:"platform"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	Start         time.Time  `json:"start"`
	End           *time.Time `json:"end,omitempty"`
}

func toEventView(e calendar.Event) eventView {
	v := eventView{
		ID: e.ID, PublicationID: e.PublicationID, CampaignID: e.CampaignID,
		Platform: e.Platform, Title: e.Title, Status: e.Status, Start: e.StartAt,
	}
	if !e.EndAt.IsZero() {
		end := e.EndAt
		v.End = &end
	}
	return v
}

// handleBulkApply handles POST /api/calendar/bulk.
// PRE: tenant header present
// POST: 200 with the per-item outcome; 400 for malformed, oversized or too-soon requests
func (a *api) handleBulkApply(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var body bulkApplyRequest
	if err := strictDecode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.ItemIDs) > a.opts.MaxBulkItems {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d items per request", a.opts.MaxBulkItems))
		return
	}

	req := bulk.Request{Operation: body.Operation, ItemIDs: body.ItemIDs, TenantID: tenantID, UserID: userID}
	if body.NewDate != nil {
		req.NewDate = body.NewDate.UTC()
	}
	if req.Operation == bulk.OperationMove && !req.NewDate.IsZero() {
		earliest := a.deps.Now().Add(a.opts.MinLeadTime)
		if req.NewDate.Before(earliest) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("new date must be at least %s in the future", a.opts.MinLeadTime))
			return
		}
	}

	outcome, err := a.deps.Bulk.Apply(r.Context(), req)
	if errors.Is(err, bulk.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bulkApplyResponse{
		Outcome:      outcome,
		SuccessCount: outcome.SuccessCount(),
		FailureCount: outcome.FailureCount(),
		Message: fmt.Sprintf("%s %s of %s",
			pastTense(req.Operation), humanize.Comma(int64(outcome.SuccessCount())), plural(outcome.Total(), "item")),
	})
}

func pastTense(op string) string {
	if op == bulk.OperationMove {
		return "Moved"
	}
	return "Deleted"
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return humanize.Comma(int64(n)) + " " + word + "s"
}

// handleEventsInRange handles GET /api/calendar/events?start=&end=&platform=&campaign_id=&status=.
// start and end are RFC 3339 timestamps; platform and status may repeat.
func (a *api) handleEventsInRange(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := requireTenant(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be an RFC 3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be an RFC 3339 timestamp")
		return
	}

	filter := calendar.Filter{Platforms: q["platform"], CampaignID: q.Get("campaign_id"), Statuses: q["status"]}
	events, err := a.deps.Bulk.EventsInRange(r.Context(), tenantID, start.UTC(), end.UTC(), filter)
	if errors.Is(err, bulk.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}

	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, toEventView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": views})
}
