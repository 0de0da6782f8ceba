// Package publisher hands publish attempts to the platform gateway, the service that
// holds the social network credentials and talks to their APIs.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	webhookAdapter "postpilot/internal/adapters/webhook"
	"postpilot/internal/application/orchestrators"
	"postpilot/internal/domain/postlog"
)

// maxErrorBody bounds how much of a gateway error body ends up in a failure message.
const maxErrorBody = 300

// ErrNotConfigured is returned when no gateway URL is set.
var ErrNotConfigured = errors.New("platform gateway is not configured")

// Gateway implements orchestrators.PlatformPublisher over JSON/HTTP.
type Gateway struct {
	poster webhookAdapter.Poster
	url    string
}

// Compile-time check that *Gateway satisfies PlatformPublisher.
var _ orchestrators.PlatformPublisher = (*Gateway)(nil)

// NewGateway creates a gateway publisher posting to url.
func NewGateway(poster webhookAdapter.Poster, url string) *Gateway {
	return &Gateway{poster: poster, url: strings.TrimSpace(url)}
}

// Configured reports whether publish attempts can be sent anywhere.
func (g *Gateway) Configured() bool {
	return g != nil && g.url != ""
}

type publishPayload struct {
	PostLogID   string         `json:"post_log_id"`
	TenantID    string         `json:"tenant_id"`
	Platform    string         `json:"platform"`
	AccountID   string         `json:"account_id"`
	ContentType string         `json:"content_type"`
	Content     string         `json:"content"`
	MediaURLs   []string       `json:"media_urls"`
	Settings    map[string]any `json:"settings"`
	RetryCount  int            `json:"retry_count"`
}

type publishResult struct {
	PostID   string         `json:"post_id"`
	PostURL  string         `json:"post_url"`
	PostType string         `json:"post_type"`
	Raw      map[string]any `json:"raw"`
}

// Publish sends one slot to the gateway.
// POST: 2xx with a post_id yields the platform response; anything else is an error whose
// text is suitable for the post log
func (g *Gateway) Publish(ctx context.Context, req orchestrators.PublishRequest) (postlog.PlatformResponse, error) {
	if !g.Configured() {
		return postlog.PlatformResponse{}, ErrNotConfigured
	}
	rec := req.Record
	body, err := json.Marshal(publishPayload{
		PostLogID: rec.ID, TenantID: rec.TenantID, Platform: rec.Platform, AccountID: rec.AccountID,
		ContentType: req.ContentType, Content: rec.Content, MediaURLs: rec.MediaURLs,
		Settings: rec.PlatformSettings, RetryCount: rec.RetryCount,
	})
	if err != nil {
		return postlog.PlatformResponse{}, fmt.Errorf("marshal publish request: %w", err)
	}

	resp, err := g.poster.Post(ctx, g.url, body)
	if err != nil {
		return postlog.PlatformResponse{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return postlog.PlatformResponse{}, fmt.Errorf("%s rejected the post (HTTP %d): %s",
			rec.Platform, resp.StatusCode, truncate(strings.TrimSpace(resp.Body), maxErrorBody))
	}

	var out publishResult
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		return postlog.PlatformResponse{}, fmt.Errorf("decode gateway response: %w", err)
	}
	if out.PostID == "" {
		return postlog.PlatformResponse{}, errors.New("gateway response has no post_id")
	}
	return postlog.PlatformResponse{PostID: out.PostID, PostURL: out.PostURL, PostType: out.PostType, Raw: out.Raw}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
