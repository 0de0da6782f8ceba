package platform

// Platform names.
const (
	Facebook  = "facebook"
	Instagram = "instagram"
	YouTube   = "youtube"
	TikTok    = "tiktok"
	Twitter   = "twitter"
	LinkedIn  = "linkedin"
	Pinterest = "pinterest"
	Threads   = "threads"
)

// Content type names.
const (
	TypeFeed     = "feed"
	TypeReel     = "reel"
	TypeStory    = "story"
	TypeStandard = "standard"
	TypeShort    = "short"
	TypeVideo    = "video"
	TypePin      = "pin"
)

// MediaTypeVideo is the only media kind with more than one content type.
const MediaTypeVideo = "video"

const (
	mb = 1 << 20
	gb = 1 << 30
)

// aspectBand is the recommended width/height range for a content type.
type aspectBand struct {
	Min, Max float64
}

var (
	vertical  = aspectBand{Min: 0.5, Max: 0.6}
	landscape = aspectBand{Min: 1.7, Max: 1.8}
)

// typeRule holds the soft limits of one content type. Violations only warn.
type typeRule struct {
	MaxDurationSeconds float64
	Aspect             aspectBand
}

// rules describes one platform.
// INVARIANT: VideoTypes[0] is the platform default for video media.
type rules struct {
	VideoTypes    []string
	MaxVideoBytes int64
	MaxImageBytes int64
	Types         map[string]typeRule
	ImageAspect   aspectBand
}

var platformRules = map[string]rules{
	Facebook: {
		VideoTypes:    []string{TypeFeed, TypeReel, TypeStory},
		MaxVideoBytes: 4 * gb,
		MaxImageBytes: 30 * mb,
		Types: map[string]typeRule{
			TypeFeed:  {MaxDurationSeconds: 240 * 60, Aspect: aspectBand{Min: 0.5, Max: 1.91}},
			TypeReel:  {MaxDurationSeconds: 90, Aspect: vertical},
			TypeStory: {MaxDurationSeconds: 60, Aspect: vertical},
		},
		ImageAspect: aspectBand{Min: 0.8, Max: 1.91},
	},
	Instagram: {
		VideoTypes:    []string{TypeFeed, TypeReel, TypeStory},
		MaxVideoBytes: 650 * mb,
		MaxImageBytes: 8 * mb,
		Types: map[string]typeRule{
			TypeFeed:  {MaxDurationSeconds: 60 * 60, Aspect: aspectBand{Min: 0.8, Max: 1.91}},
			TypeReel:  {MaxDurationSeconds: 90, Aspect: vertical},
			TypeStory: {MaxDurationSeconds: 60, Aspect: vertical},
		},
		ImageAspect: aspectBand{Min: 0.8, Max: 1.91},
	},
	YouTube: {
		VideoTypes:    []string{TypeStandard, TypeShort},
		MaxVideoBytes: 256 * gb,
		MaxImageBytes: 2 * mb,
		Types: map[string]typeRule{
			TypeStandard: {MaxDurationSeconds: 12 * 60 * 60, Aspect: landscape},
			TypeShort:    {MaxDurationSeconds: 60, Aspect: vertical},
		},
		ImageAspect: landscape,
	},
	TikTok: {
		VideoTypes:    []string{TypeVideo},
		MaxVideoBytes: 4 * gb,
		MaxImageBytes: 20 * mb,
		Types: map[string]typeRule{
			TypeVideo: {MaxDurationSeconds: 10 * 60, Aspect: vertical},
		},
		ImageAspect: vertical,
	},
	Twitter: {
		VideoTypes:    []string{TypeFeed},
		MaxVideoBytes: 512 * mb,
		MaxImageBytes: 5 * mb,
		Types: map[string]typeRule{
			TypeFeed: {MaxDurationSeconds: 140, Aspect: aspectBand{Min: 0.33, Max: 3.0}},
		},
		ImageAspect: aspectBand{Min: 0.33, Max: 3.0},
	},
	LinkedIn: {
		VideoTypes:    []string{TypeFeed},
		MaxVideoBytes: 5 * gb,
		MaxImageBytes: 8 * mb,
		Types: map[string]typeRule{
			TypeFeed: {MaxDurationSeconds: 10 * 60, Aspect: aspectBand{Min: 0.5, Max: 2.4}},
		},
		ImageAspect: aspectBand{Min: 0.5, Max: 2.4},
	},
	Pinterest: {
		VideoTypes:    []string{TypePin},
		MaxVideoBytes: 2 * gb,
		MaxImageBytes: 20 * mb,
		Types: map[string]typeRule{
			TypePin: {MaxDurationSeconds: 15 * 60, Aspect: aspectBand{Min: 0.5, Max: 1.0}},
		},
		ImageAspect: aspectBand{Min: 0.5, Max: 1.0},
	},
	Threads: {
		VideoTypes:    []string{TypeFeed},
		MaxVideoBytes: 1 * gb,
		MaxImageBytes: 8 * mb,
		Types: map[string]typeRule{
			TypeFeed: {MaxDurationSeconds: 5 * 60, Aspect: aspectBand{Min: 0.5, Max: 1.91}},
		},
		ImageAspect: aspectBand{Min: 0.5, Max: 1.91},
	},
}

// SupportedPlatforms returns the platform names in a stable order.
func SupportedPlatforms() []string {
	return []string{Facebook, Instagram, YouTube, TikTok, Twitter, LinkedIn, Pinterest, Threads}
}
