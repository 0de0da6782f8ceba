package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/csrf"

	"postpilot/internal/adapters/http/middleware"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var validate = validator.New()

// internalError logs the error and returns a generic 500 response.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeAndValidate decodes the body into v and runs its validate tags.
// POST: on failure a 400 has been written and false is returned
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := strictDecode(w, r, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "http_url":
		return field + " must be an http(s) URL"
	default:
		return field + " is invalid"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response_encode_failed", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requireTenant returns the acting tenant and user.
// POST: when the tenant header is missing a 400 has been written and ok is false
func requireTenant(w http.ResponseWriter, r *http.Request) (tenantID, userID string, ok bool) {
	tenantID = strings.TrimSpace(r.Header.Get(middleware.TenantHeader))
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "missing "+middleware.TenantHeader+" header")
		return "", "", false
	}
	return tenantID, strings.TrimSpace(r.Header.Get(middleware.UserHeader)), true
}

// handleHealth handles GET /healthz.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleCSRFToken handles GET /api/csrf for browser clients that post forms.
func handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"token": csrf.Token(r)})
}

// Page sizes for list endpoints.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// queryLimit reads ?limit=, capping it at ceiling.
// POST: ok is false after a 400 has been written for a non-positive or non-numeric value
func queryLimit(w http.ResponseWriter, r *http.Request, fallback, ceiling int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(n, ceiling), true
}
