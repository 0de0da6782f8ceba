package web

import (
	"net/http"

	"postpilot/internal/domain/content"
	"postpilot/internal/domain/platform"
)

type platformConfigurationRequest struct {
	Media         platform.MediaDescriptor `json:"media"`
	RequestedType string                   `json:"requested_type"`
}

// handlePlatformConfiguration handles POST /api/platforms/{platform}/configuration.
// Unknown platforms are answered with an incompatible verdict rather than an error.
func handlePlatformConfiguration(w http.ResponseWriter, r *http.Request) {
	var body platformConfigurationRequest
	if err := strictDecode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, platform.BuildConfiguration(r.PathValue("platform"), body.Media, body.RequestedType))
}

type sanitizeRequest struct {
	Content string `json:"content"`
	Format  string `json:"format" validate:"omitempty,oneof=html markdown"`
}

type sanitizeResponse struct {
	Content     string `json:"content"`
	WasModified bool   `json:"was_modified"`
}

// handleSanitizePreview handles POST /api/content/sanitize so authors see what will be posted.
func handleSanitizePreview(w http.ResponseWriter, r *http.Request) {
	var body sanitizeRequest
	if !decodeAndValidate(w, r, &body) {
		return
	}
	var out content.SanitizationOutcome
	if body.Format == "markdown" {
		out = content.RenderMarkdown(body.Content)
	} else {
		out = content.Sanitize(body.Content)
	}
	writeJSON(w, http.StatusOK, sanitizeResponse{Content: out.Content, WasModified: out.WasModified})
}
