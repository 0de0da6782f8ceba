package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSlowRequest is the threshold above which a request is logged at WARN.
const DefaultSlowRequest = 200 * time.Millisecond

// requestIDCounter is an atomic counter for request IDs.
var requestIDCounter uint64

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

var statusWriterPool = sync.Pool{
	New: func() any {
		return &statusWriter{}
	},
}

// Timing returns middleware that traces and logs every request.
// Normal requests log at DEBUG; slow requests log at WARN. Each request gets a server span
// continuing any incoming W3C trace context. A nil tp uses the global provider.
// POST: the span ends and the writer returns to the pool even when the handler panics
func Timing(threshold time.Duration, tp trace.TracerProvider) func(http.Handler) http.Handler {
	if threshold <= 0 {
		threshold = DefaultSlowRequest
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer("postpilot/http")
	propagator := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			reqID := atomic.AddUint64(&requestIDCounter, 1)

			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+routeName(path),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", path),
				),
			)

			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			defer func() {
				elapsed := time.Since(start)
				durationMs := float64(elapsed.Microseconds()) / 1000.0
				attrs := []any{
					"request_id", reqID,
					"method", r.Method,
					"path", path,
					"status", sw.status,
					"duration_ms", durationMs,
				}
				if elapsed >= threshold {
					slog.Warn("slow_request", attrs...)
				} else {
					slog.Debug("request", attrs...)
				}

				span.SetAttributes(attribute.Int("http.status_code", sw.status))
				if sw.status >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, http.StatusText(sw.status))
				}
				span.End()

				sw.ResponseWriter = nil
				statusWriterPool.Put(sw)
			}()

			next.ServeHTTP(sw, r.WithContext(ctx))
		})
	}
}

// routeName collapses path segments that look like IDs so span names stay low-cardinality.
func routeName(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if i > 2 && looksLikeID(p) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func looksLikeID(seg string) bool {
	if seg == "" {
		return false
	}
	hasDigit := false
	for _, c := range seg {
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case c == '-' || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F'):
		default:
			return false
		}
	}
	return hasDigit
}
