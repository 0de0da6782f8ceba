package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	emailAdapter "postpilot/internal/adapters/email"
	"postpilot/internal/adapters/http/middleware"
	"postpilot/internal/application/orchestrators"
	"postpilot/internal/application/projections"
	"postpilot/internal/domain/outbox"
	"postpilot/internal/domain/webhook"
)

// Defaults applied when Options leaves a limit unset.
const (
	DefaultMaxBulkItems = 200
	DefaultRatePerMin   = 120
	defaultRateBurst    = 20
)

// DeliveryLister reads recent webhook deliveries.
type DeliveryLister interface {
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]webhook.DeliveryLog, error)
}

// FailedAlertLister reads alert emails the outbox stopped retrying.
type FailedAlertLister interface {
	ListFailed(ctx context.Context, tenantID string, limit int) ([]outbox.Entry, error)
}

// Deps holds the use cases and read stores the API serves.
type Deps struct {
	PostLogs   *orchestrators.PostLogManager
	Bulk       *orchestrators.BulkMutationEngine
	Webhooks   *orchestrators.WebhookDispatcher
	StatsStore projections.DeliveryStatsStore
	Deliveries DeliveryLister
	Now        func() time.Time

	// Publisher is nil when no platform gateway is configured; publish requests then get 503.
	Publisher    orchestrators.PlatformPublisher
	AlertSender  emailAdapter.Sender      // optional
	AlertQueue   orchestrators.AlertQueue // optional
	FailedAlerts FailedAlertLister        // optional
}

// Options tunes transport-level behaviour.
type Options struct {
	CSRFKey        []byte
	SecureCookies  bool
	TrustedOrigins []string
	RatePerMin     int
	MaxBulkItems   int
	MinLeadTime    time.Duration
	SlowRequest    time.Duration
	TracerProvider trace.TracerProvider // nil uses the global provider
}

type api struct {
	deps Deps
	opts Options
}

// LoadCSRFKey decodes a hex-encoded 32-byte key. Without one, production refuses to start
// and development gets a random key per process.
func LoadCSRFKey(keyHex string, production bool) ([]byte, error) {
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return nil, errors.New("CSRF key must be 64 hex characters (32 bytes)")
		}
		return key, nil
	}
	if production {
		return nil, errors.New("CSRF key is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate CSRF key: %w", err)
	}
	slog.Warn("csrf_key_random", "reason", "no key configured; tokens won't survive restart")
	return key, nil
}

// NewMux wires HTTP handlers for the API.
// PRE: deps are fully populated; opts.CSRFKey is 32 bytes
func NewMux(deps Deps, opts Options) http.Handler {
	if opts.MaxBulkItems <= 0 {
		opts.MaxBulkItems = DefaultMaxBulkItems
	}
	if opts.RatePerMin <= 0 {
		opts.RatePerMin = DefaultRatePerMin
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	a := &api{deps: deps, opts: opts}

	mux := http.NewServeMux()
	a.registerRoutes(mux)

	limiter := middleware.NewRateLimiter(opts.RatePerMin, defaultRateBurst)

	// Request order: Timing -> SecurityHeaders -> CSRF -> RateLimit -> Mux
	return middleware.Chain(mux,
		middleware.RateLimit(limiter),
		middleware.CSRF(opts.CSRFKey, middleware.CSRFOptions{Secure: opts.SecureCookies, TrustedOrigins: opts.TrustedOrigins}),
		middleware.SecurityHeaders,
		middleware.Timing(opts.SlowRequest, opts.TracerProvider),
	)
}

func (a *api) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /api/csrf", handleCSRFToken)

	mux.HandleFunc("POST /api/calendar/bulk", a.handleBulkApply)
	mux.HandleFunc("GET /api/calendar/events", a.handleEventsInRange)

	mux.HandleFunc("POST /api/publish", a.handlePublish)
	mux.HandleFunc("POST /api/post-logs/{id}/retry", a.handleRetryPostLog)
	mux.HandleFunc("GET /api/publications/{id}/stats", a.handlePublicationStats)
	mux.HandleFunc("GET /api/campaigns/{id}/stats", a.handleCampaignStats)

	mux.HandleFunc("POST /api/platforms/{platform}/configuration", handlePlatformConfiguration)
	mux.HandleFunc("POST /api/content/sanitize", handleSanitizePreview)

	mux.HandleFunc("POST /api/webhooks/test", a.handleWebhookTest)
	mux.HandleFunc("GET /api/webhooks/deliveries", a.handleWebhookDeliveries)
	mux.HandleFunc("GET /api/alerts/failed", a.handleFailedAlerts)
}
