package content

import (
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
)

// SanitizationOutcome is the cleaned content plus whether anything was changed.
type SanitizationOutcome struct {
	Content     string
	WasModified bool
}

// allowedAttrs lists the surviving elements and the attributes each may keep.
var allowedAttrs = map[string]map[string]bool{
	"p":      {},
	"b":      {},
	"strong": {},
	"i":      {},
	"em":     {},
	"ul":     {},
	"ol":     {},
	"li":     {},
	"br":     {},
	"a":      {"href": true},
	"img":    {"src": true, "alt": true},
}

// urlAttrs hold URLs and are checked for unsafe schemes.
var urlAttrs = map[string]bool{"href": true, "src": true}

var unsafeSchemes = []string{"javascript:", "data:", "vbscript:"}

// droppedContainers are removed together with everything inside them.
var droppedContainers = map[string]bool{
	"script": true, "style": true, "iframe": true, "object": true, "embed": true,
	"noscript": true, "template": true, "svg": true, "math": true, "textarea": true,
	"title": true, "xmp": true, "noembed": true, "noframes": true, "plaintext": true,
}

// rawTextContainers switch the tokenizer into raw-text mode even when written self-closing.
var rawTextContainers = map[string]bool{
	"script": true, "style": true, "iframe": true, "noscript": true, "textarea": true,
	"title": true, "xmp": true, "noembed": true, "noframes": true, "plaintext": true,
}

// voidElements never have content, so they are not tracked as open containers.
var voidElements = map[string]bool{"embed": true}

// Sanitize reduces raw rich text to the allow-listed subset.
// PRE: none; any string is accepted
// POST: Content contains only allow-listed elements with safe attributes;
// WasModified is true iff Content != raw
// INVARIANT: Sanitize(Sanitize(x).Content) == Sanitize(x) with WasModified false
func Sanitize(raw string) SanitizationOutcome {
	z := xhtml.NewTokenizer(strings.NewReader(raw))
	var out strings.Builder
	out.Grow(len(raw))
	var skip []string

	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			break
		}
		rawTok := string(z.Raw())

		switch tt {
		case xhtml.TextToken:
			if len(skip) == 0 {
				out.WriteString(strings.ReplaceAll(rawTok, "<", "&lt;"))
			}

		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			nameBytes, hasAttr := z.TagName()
			name := string(nameBytes)
			if droppedContainers[name] {
				opens := tt == xhtml.StartTagToken && !voidElements[name]
				if opens || rawTextContainers[name] {
					skip = append(skip, name)
				}
				continue
			}
			if len(skip) > 0 {
				continue
			}
			allowed, ok := allowedAttrs[name]
			if !ok {
				continue
			}
			attrs, safe := readAttrs(z, hasAttr, allowed)
			if safe {
				out.WriteString(rawTok)
			} else {
				out.WriteString(buildTag(name, attrs, tt == xhtml.SelfClosingTagToken))
			}

		case xhtml.EndTagToken:
			nameBytes, _ := z.TagName()
			name := string(nameBytes)
			if len(skip) > 0 {
				if skip[len(skip)-1] == name {
					skip = skip[:len(skip)-1]
				}
				continue
			}
			if _, ok := allowedAttrs[name]; !ok {
				continue
			}
			if isPlainEndTag(rawTok, name) {
				out.WriteString(rawTok)
			} else {
				out.WriteString("</" + name + ">")
			}

		default:
			// comments and doctypes
		}
	}

	cleaned := out.String()
	return SanitizationOutcome{Content: cleaned, WasModified: cleaned != raw}
}

// isPlainEndTag reports whether raw is </name> with at most whitespace before the '>'.
// Anything else in an end tag is rewritten.
func isPlainEndTag(raw, name string) bool {
	rest, ok := strings.CutPrefix(strings.ToLower(raw), "</"+name)
	if !ok {
		return false
	}
	rest, ok = strings.CutSuffix(rest, ">")
	return ok && strings.Trim(rest, " \t\n\f\r") == ""
}

type attr struct {
	key, val string
}

// readAttrs returns the attributes worth keeping and whether the tag can be emitted untouched.
func readAttrs(z *xhtml.Tokenizer, more bool, allowed map[string]bool) ([]attr, bool) {
	var kept []attr
	safe := true
	for more {
		var k, v []byte
		k, v, more = z.TagAttr()
		key, val := string(k), string(v)
		if !allowed[key] {
			safe = false
			continue
		}
		if urlAttrs[key] && IsUnsafeURL(val) {
			val = "#"
			safe = false
		}
		kept = append(kept, attr{key: key, val: val})
	}
	return kept, safe
}

func buildTag(name string, attrs []attr, selfClosing bool) string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(name)
	for _, a := range attrs {
		b.WriteString(" ")
		b.WriteString(a.key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.val))
		b.WriteString(`"`)
	}
	if selfClosing {
		b.WriteString(" /")
	}
	b.WriteString(">")
	return b.String()
}

// IsUnsafeURL reports whether an (already entity-decoded) URL uses an executable scheme.
// Whitespace and control characters are ignored the way browsers ignore them.
func IsUnsafeURL(v string) bool {
	cleaned := strings.Map(func(r rune) rune {
		if r <= 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, v)
	cleaned = strings.ToLower(cleaned)
	for _, s := range unsafeSchemes {
		if strings.HasPrefix(cleaned, s) {
			return true
		}
	}
	return false
}
