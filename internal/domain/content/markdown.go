package content

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// mdRenderer renders author captions. Raw HTML in the markdown is omitted (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// RenderMarkdown converts markdown to HTML and runs the result through Sanitize.
// WasModified reports whether sanitizing changed the rendered HTML, e.g. because the
// author embedded raw markup or used elements outside the allow-list.
func RenderMarkdown(md string) SanitizationOutcome {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		// goldmark only fails on writer errors; fall back to escaped text
		return Sanitize(html.EscapeString(md))
	}
	rendered := buf.String()
	out := Sanitize(rendered)
	out.WasModified = out.Content != rendered
	return out
}
