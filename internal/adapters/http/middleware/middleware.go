package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/csrf"
	"golang.org/x/time/rate"
)

// TenantHeader carries the workspace a request acts for. An upstream gateway sets it
// after authenticating the caller.
const TenantHeader = "X-Tenant-ID"

// UserHeader carries the acting user.
const UserHeader = "X-User-ID"

// idleVisitorTTL is how long an unused limiter bucket is kept.
const idleVisitorTTL = 5 * time.Minute

// RateLimiter provides a token bucket per tenant, falling back to client IP.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter allowing perMinute requests per key with the
// given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow checks if a request for key is allowed.
// PRE: key is non-empty
// POST: Returns true if within rate limit, false if exceeded
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > time.Minute {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > idleVisitorTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now

	if !v.limiter.AllowN(now, 1) {
		slog.Warn("rate_limit_exceeded", "key", key)
		return false
	}
	return true
}

// RateLimit returns middleware that limits requests per tenant or IP.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(limitKey(r)) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func limitKey(r *http.Request) string {
	if tenant := r.Header.Get(TenantHeader); tenant != "" {
		return "tenant:" + tenant
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// SecurityHeaders adds OWASP recommended headers for a JSON API.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// CSRFOptions configures CSRF protection.
type CSRFOptions struct {
	Secure         bool // cookies over HTTPS only
	TrustedOrigins []string
}

// CSRF returns middleware protecting cookie-authenticated form posts.
// It expects a 32-byte key. Requests with Content-Type application/json are exempt: browsers
// cannot send them cross-origin without a CORS preflight.
func CSRF(authKey []byte, opts CSRFOptions) func(http.Handler) http.Handler {
	csrfProtect := csrf.Protect(
		authKey,
		csrf.Secure(opts.Secure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteStrictMode),
		csrf.TrustedOrigins(opts.TrustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reason := "unknown"
			if err := csrf.FailureReason(r); err != nil {
				reason = err.Error()
			}
			slog.Warn("csrf_rejected", "path", r.URL.Path, "reason", reason)
			http.Error(w, "Forbidden - CSRF token invalid", http.StatusForbidden)
		})),
	)

	return func(next http.Handler) http.Handler {
		protected := csrfProtect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
				next.ServeHTTP(w, r)
				return
			}
			if !opts.Secure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// Chain wraps h with each middleware in turn; the last one listed runs first.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for _, m := range middlewares {
		h = m(h)
	}
	return h
}
