package postlog

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Status constants for the delivery record lifecycle.
const (
	StatusPending           = "pending"
	StatusPublishing        = "publishing"
	StatusPublished         = "published"
	StatusFailed            = "failed"
	StatusOrphaned          = "orphaned"
	StatusRemovedOnPlatform = "removed_on_platform"
)

// MaxRetries is the lifetime cap on user-triggered retries per record.
const MaxRetries = 3

// MaxErrorLength is the number of runes kept from a failure message.
const MaxErrorLength = 1000

// Domain errors.
var (
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrRecordNotFound     = errors.New("post log record not found")
	ErrMissingKey         = errors.New("publication, account and tenant are required")
	ErrAlreadyPublished   = errors.New("post is already on the platform")
)

// Engagement keys normalised out of a platform response.
var engagementKeys = []string{"likes", "comments", "shares", "views"}

// Record is the delivery record for one (publication, account, media file) combination.
// INVARIANT: at most one Record exists per Key().
type Record struct {
	ID               string
	TenantID         string
	UserID           string
	PublicationID    string
	CampaignID       string
	AccountID        string
	MediaFileID      string // empty when the publication carries no media for this account
	Platform         string
	Content          string
	MediaURLs        []string
	PlatformSettings map[string]any
	Status           string
	PlatformPostID   string
	PlatformPostURL  string
	PlatformPostType string
	PublishedAt      time.Time
	ErrorMessage     string
	RetryCount       int
	LastRetryAt      time.Time
	Engagement       map[string]int
	Metadata         map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Key identifies the delivery slot a record occupies.
type Key struct {
	PublicationID string
	AccountID     string
	MediaFileID   string
}

// Key returns the uniqueness key of the record.
func (r *Record) Key() Key {
	return Key{PublicationID: r.PublicationID, AccountID: r.AccountID, MediaFileID: r.MediaFileID}
}

// PlatformResponse is what a platform adapter reports after a successful publish.
type PlatformResponse struct {
	PostID   string
	PostURL  string
	PostType string
	Raw      map[string]any
}

// Validate checks that the record carries its identity fields.
// PRE: Record struct is populated
// POST: Returns nil if valid, error otherwise
func (r *Record) Validate() error {
	if r.TenantID == "" || r.PublicationID == "" || r.AccountID == "" {
		return ErrMissingKey
	}
	if r.Platform == "" {
		return errors.New("platform is required")
	}
	if !IsKnownStatus(r.Status) {
		return errors.New("unknown status: " + r.Status)
	}
	return nil
}

// IsKnownStatus reports whether s is one of the lifecycle states.
func IsKnownStatus(s string) bool {
	switch s {
	case StatusPending, StatusPublishing, StatusPublished, StatusFailed, StatusOrphaned, StatusRemovedOnPlatform:
		return true
	}
	return false
}

// MarkPublishing moves a pending record into flight.
// PRE: Status is pending
// POST: Status is publishing
func (r *Record) MarkPublishing(now time.Time) error {
	if r.Status != StatusPending {
		return ErrInvalidTransition
	}
	r.Status = StatusPublishing
	r.UpdatedAt = now
	return nil
}

// MarkPublished records a successful publish.
// PRE: resp comes from the platform adapter
// POST: Status is published, remote identifiers stamped, error cleared
func (r *Record) MarkPublished(resp PlatformResponse, now time.Time) {
	r.Status = StatusPublished
	r.PlatformPostID = resp.PostID
	r.PlatformPostURL = resp.PostURL
	r.PlatformPostType = resp.PostType
	r.PublishedAt = now
	r.ErrorMessage = ""
	r.Engagement = NormalizeEngagement(resp.Raw)
	r.Metadata = normalizeMetadata(resp)
	r.UpdatedAt = now
}

// MarkFailed records a failed attempt. The retry counter is left alone.
// PRE: none
// POST: Status is failed, ErrorMessage holds at most MaxErrorLength runes
func (r *Record) MarkFailed(message string, now time.Time) {
	r.Status = StatusFailed
	r.ErrorMessage = TruncateError(message)
	r.UpdatedAt = now
}

// CanRetry returns true while a failed record still has retries left.
// INVARIANT: Record is not mutated
func (r *Record) CanRetry() bool {
	return r.Status == StatusFailed && r.RetryCount < MaxRetries
}

// RetriesRemaining returns how many user-triggered retries are left.
func (r *Record) RetriesRemaining() int {
	if r.RetryCount >= MaxRetries {
		return 0
	}
	return MaxRetries - r.RetryCount
}

// ResetForRetry puts a failed record back in the queue.
// PRE: CanRetry() is true
// POST: RetryCount incremented, LastRetryAt stamped, Status is pending
func (r *Record) ResetForRetry(now time.Time) error {
	if !r.CanRetry() {
		return ErrRetryLimitExceeded
	}
	r.RetryCount++
	r.LastRetryAt = now
	r.Status = StatusPending
	r.UpdatedAt = now
	return nil
}

// AcceptsNewAttempt reports whether the slot held by r may be published again.
// A failed record that can still retry is accepted; the caller resets it first so the
// attempt counts against MaxRetries.
// INVARIANT: Record is not mutated
func (r *Record) AcceptsNewAttempt() error {
	switch r.Status {
	case StatusPublished, StatusOrphaned, StatusRemovedOnPlatform:
		return ErrAlreadyPublished
	case StatusFailed:
		if !r.CanRetry() {
			return ErrRetryLimitExceeded
		}
	}
	return nil
}

// MarkRemovedOnPlatform flags a published record whose remote post disappeared.
// orphaned distinguishes "account disconnected" from "deleted on the platform".
// PRE: Status is published
// POST: Status is orphaned or removed_on_platform
func (r *Record) MarkRemovedOnPlatform(orphaned bool, now time.Time) error {
	if r.Status != StatusPublished {
		return ErrInvalidTransition
	}
	if orphaned {
		r.Status = StatusOrphaned
	} else {
		r.Status = StatusRemovedOnPlatform
	}
	r.UpdatedAt = now
	return nil
}

// TruncateError caps msg at MaxErrorLength runes without splitting a rune.
func TruncateError(msg string) string {
	msg = strings.TrimSpace(msg)
	if utf8.RuneCountInString(msg) <= MaxErrorLength {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:MaxErrorLength])
}

// NormalizeEngagement extracts the engagement counters from a raw platform payload.
// Missing or non-numeric counters are zero.
func NormalizeEngagement(raw map[string]any) map[string]int {
	out := make(map[string]int, len(engagementKeys))
	for _, k := range engagementKeys {
		out[k] = toInt(raw[k])
	}
	return out
}

// normalizeMetadata keeps the non-engagement part of the response together with the
// identifiers, so the snapshot is self-describing.
func normalizeMetadata(resp PlatformResponse) map[string]any {
	meta := make(map[string]any, len(resp.Raw)+3)
	keys := make([]string, 0, len(resp.Raw))
	for k := range resp.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if isEngagementKey(k) {
			continue
		}
		meta[k] = resp.Raw[k]
	}
	if resp.PostID != "" {
		meta["post_id"] = resp.PostID
	}
	if resp.PostURL != "" {
		meta["post_url"] = resp.PostURL
	}
	if resp.PostType != "" {
		meta["post_type"] = resp.PostType
	}
	return meta
}

func isEngagementKey(k string) bool {
	for _, e := range engagementKeys {
		if e == k {
			return true
		}
	}
	return false
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
