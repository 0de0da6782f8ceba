package webhook

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "postpilot/internal/domain/webhook"
)

// DefaultTimeout bounds a single webhook call.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a response body is kept for the delivery log.
const maxResponseBytes = 64 << 10

// Poster sends a JSON payload to a webhook URL.
type Poster interface {
	Post(ctx context.Context, url string, payload []byte) (domain.Response, error)
}

// Config controls the outbound transport.
type Config struct {
	Timeout time.Duration
	// InsecureSkipVerify accepts self-signed certificates on self-hosted chat servers.
	InsecureSkipVerify bool
	UserAgent          string
}

// Client is the HTTP transport for chat webhooks.
type Client struct {
	http      *http.Client
	userAgent string
}

// Compile-time check that *Client satisfies Poster.
var _ Poster = (*Client)(nil)

// NewClient builds a client with a fixed timeout.
// POST: a zero Timeout uses DefaultTimeout
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "postpilot-webhook/1.0"
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		IdleConnTimeout: 30 * time.Second,
	}
	return &Client{
		http:      &http.Client{Transport: transport, Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
	}
}

// Post sends payload as application/json.
// POST: any status code is returned as a Response for the caller to judge. A non-nil error
// with a zero StatusCode means no response arrived; with a non-zero StatusCode the body
// broke off and Response holds whatever was read
func (c *Client) Post(ctx context.Context, url string, payload []byte) (domain.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.Response{}, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Response{}, fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	out := domain.Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        string(body),
	}
	if err != nil {
		return out, fmt.Errorf("read webhook response (HTTP %d): %w", resp.StatusCode, err)
	}
	return out, nil
}
