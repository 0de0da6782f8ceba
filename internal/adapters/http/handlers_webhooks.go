package web

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"postpilot/internal/domain/webhook"
)

type webhookTestRequest struct {
	Channel string `json:"channel" validate:"required"`
	URL     string `json:"url" validate:"required,http_url"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

type deliveryView struct {
	ID         string    `json:"id"`
	Channel    string    `json:"channel"`
	EventType  string    `json:"event_type"`
	StatusCode int       `json:"status_code"`
	Success    bool      `json:"success"`
	Response   string    `json:"response,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Age        string    `json:"age"`
}

func (a *api) toDeliveryView(d webhook.DeliveryLog) deliveryView {
	return deliveryView{
		ID: d.ID, Channel: d.Channel, EventType: d.EventType, StatusCode: d.StatusCode,
		Success: d.Success, Response: d.Response, CreatedAt: d.CreatedAt,
		Age: humanize.RelTime(d.CreatedAt, a.deps.Now(), "ago", "from now"),
	}
}

// handleWebhookTest handles POST /api/webhooks/test, sending one message to a configured channel.
// POST: 200 with the delivery log row whether or not the remote side accepted it
func (a *api) handleWebhookTest(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var body webhookTestRequest
	if !decodeAndValidate(w, r, &body) {
		return
	}
	if !slices.Contains(webhook.Channels(), body.Channel) {
		writeError(w, http.StatusBadRequest, "channel must be one of: "+strings.Join(webhook.Channels(), ", "))
		return
	}
	if body.Title == "" {
		body.Title = "PostPilot test"
	}
	if body.Body == "" {
		body.Body = "Notifications for this workspace are set up."
	}

	entry := a.deps.Webhooks.Send(r.Context(), webhook.SendInput{
		TenantID: tenantID, Channel: body.Channel, URL: body.URL,
		Title: body.Title, Body: body.Body, EventLabel: "test",
	})
	writeJSON(w, http.StatusOK, a.toDeliveryView(entry))
}

// handleWebhookDeliveries handles GET /api/webhooks/deliveries?limit=.
func (a *api) handleWebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := requireTenant(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r, defaultListLimit, maxListLimit)
	if !ok {
		return
	}

	logs, err := a.deps.Deliveries.ListByTenant(r.Context(), tenantID, limit)
	if err != nil {
		internalError(w, err)
		return
	}
	views := make([]deliveryView, 0, len(logs))
	for _, d := range logs {
		views = append(views, a.toDeliveryView(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": views})
}
