package platform

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// MediaDescriptor describes the asset attached to a post. Zero values mean "unknown"
// and skip the rules that need them.
type MediaDescriptor struct {
	Type            string  `json:"type"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	SizeBytes       int64   `json:"size_bytes,omitempty"`
	Extension       string  `json:"extension,omitempty"`
}

// IsVideo reports whether the media kind offers per-platform content types.
func (m MediaDescriptor) IsVideo() bool {
	return strings.EqualFold(m.Type, MediaTypeVideo)
}

// Verdict is the compatibility decision for one (platform, media, type) combination.
type Verdict struct {
	Platform        string   `json:"platform"`
	IsCompatible    bool     `json:"is_compatible"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	RecommendedType string   `json:"recommended_type,omitempty"`
}

// MediaSummary is the display view of a media descriptor. Values are rounded for
// presentation only.
type MediaSummary struct {
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	AspectRatio     float64 `json:"aspect_ratio"`
	DurationSeconds float64 `json:"duration_seconds"`
	SizeMB          float64 `json:"size_mb"`
	SizeLabel       string  `json:"size_label"`
	Quality         string  `json:"quality"`
}

// Configuration is the preview offered to the author for one platform.
type Configuration struct {
	Platform       string       `json:"platform"`
	AvailableTypes []string     `json:"available_types"`
	SelectedType   string       `json:"selected_type"`
	CanChangeType  bool         `json:"can_change_type"`
	Verdict        Verdict      `json:"verdict"`
	Media          MediaSummary `json:"media"`
}

// AvailableTypes returns the content types the platform offers for this media kind.
// Non-video media always collapses to feed. Unknown platforms return nil.
func AvailableTypes(platform string, media MediaDescriptor) []string {
	r, ok := platformRules[platform]
	if !ok {
		return nil
	}
	if !media.IsVideo() {
		return []string{TypeFeed}
	}
	out := make([]string, len(r.VideoTypes))
	copy(out, r.VideoTypes)
	return out
}

// Resolve decides whether media can be published to platform as requestedType.
// An empty requestedType selects the platform default.
// PRE: none
// POST: IsCompatible is false iff Errors is non-empty
// INVARIANT: pure; identical inputs give identical verdicts
func Resolve(platform string, media MediaDescriptor, requestedType string) Verdict {
	v := Verdict{Platform: platform, Errors: []string{}, Warnings: []string{}}
	r, ok := platformRules[platform]
	if !ok {
		v.Errors = append(v.Errors, "unsupported platform: "+platform)
		return v
	}

	types := AvailableTypes(platform, media)
	v.RecommendedType = recommendedType(types, media)

	selected := requestedType
	if selected == "" {
		selected = types[0]
	}
	if !contains(types, selected) {
		v.Errors = append(v.Errors, fmt.Sprintf("content type %q is not supported by %s for %s media (supported: %s)",
			selected, platform, mediaKind(media), strings.Join(types, ", ")))
	}

	limit := r.MaxImageBytes
	if media.IsVideo() {
		limit = r.MaxVideoBytes
	}
	if media.SizeBytes > limit {
		v.Errors = append(v.Errors, fmt.Sprintf("file size %s exceeds the %s limit of %s",
			humanize.IBytes(uint64(media.SizeBytes)), platform, humanize.IBytes(uint64(limit))))
	}

	if rule, ok := softRule(r, media, selected); ok {
		if media.IsVideo() && rule.MaxDurationSeconds > 0 && media.DurationSeconds > rule.MaxDurationSeconds {
			v.Warnings = append(v.Warnings, fmt.Sprintf("duration %.0fs exceeds the recommended %.0fs for %s %s",
				media.DurationSeconds, rule.MaxDurationSeconds, platform, selected))
		}
		if ratio, known := aspectRatio(media); known && (ratio < rule.Aspect.Min || ratio > rule.Aspect.Max) {
			v.Warnings = append(v.Warnings, fmt.Sprintf("aspect ratio %.2f is outside the recommended %.2f-%.2f for %s %s",
				ratio, rule.Aspect.Min, rule.Aspect.Max, platform, selected))
		}
	}

	v.IsCompatible = len(v.Errors) == 0
	return v
}

// BuildConfiguration returns the full preview for one platform.
// POST: CanChangeType == len(AvailableTypes) > 1
func BuildConfiguration(platform string, media MediaDescriptor, requestedType string) Configuration {
	verdict := Resolve(platform, media, requestedType)
	types := AvailableTypes(platform, media)
	if types == nil {
		types = []string{}
	}

	selected := requestedType
	if selected == "" && len(types) > 0 {
		selected = types[0]
	}
	if !contains(types, selected) {
		selected = verdict.RecommendedType
	}

	return Configuration{
		Platform:       platform,
		AvailableTypes: types,
		SelectedType:   selected,
		CanChangeType:  len(types) > 1,
		Verdict:        verdict,
		Media:          Summarize(media),
	}
}

// Summarize builds the display summary of a media descriptor.
func Summarize(media MediaDescriptor) MediaSummary {
	s := MediaSummary{
		Width:           media.Width,
		Height:          media.Height,
		DurationSeconds: round2(media.DurationSeconds),
		SizeMB:          round2(float64(media.SizeBytes) / mb),
		Quality:         quality(media),
	}
	if ratio, ok := aspectRatio(media); ok {
		s.AspectRatio = round2(ratio)
	}
	if media.SizeBytes > 0 {
		s.SizeLabel = humanize.Bytes(uint64(media.SizeBytes))
	}
	return s
}

// recommendedType picks the type that best fits the media shape.
func recommendedType(types []string, media MediaDescriptor) string {
	if !media.IsVideo() {
		return TypeFeed
	}
	if media.Height > media.Width && media.DurationSeconds > 0 {
		if media.DurationSeconds <= 60 && contains(types, TypeShort) {
			return TypeShort
		}
		if media.DurationSeconds <= 90 && contains(types, TypeReel) {
			return TypeReel
		}
	}
	return types[0]
}

func softRule(r rules, media MediaDescriptor, selected string) (typeRule, bool) {
	if !media.IsVideo() {
		return typeRule{Aspect: r.ImageAspect}, true
	}
	rule, ok := r.Types[selected]
	return rule, ok
}

func aspectRatio(media MediaDescriptor) (float64, bool) {
	if media.Width <= 0 || media.Height <= 0 {
		return 0, false
	}
	return float64(media.Width) / float64(media.Height), true
}

func quality(media MediaDescriptor) string {
	short := media.Width
	if media.Height < short {
		short = media.Height
	}
	switch {
	case short <= 0:
		return "unknown"
	case short >= 2160:
		return "4K"
	case short >= 1080:
		return "1080p"
	case short >= 720:
		return "720p"
	default:
		return "SD"
	}
}

func mediaKind(media MediaDescriptor) string {
	if media.IsVideo() {
		return "video"
	}
	return "non-video"
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
