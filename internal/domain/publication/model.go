package publication

import (
	"errors"
	"time"

	"postpilot/internal/domain/platform"
)

// Publication is the piece of content an author scheduled to one or more accounts.
// It is owned by the surrounding CRUD layer and only read here.
type Publication struct {
	ID          string
	TenantID    string
	UserID      string
	CampaignID  string
	Title       string
	Body        string // author markup, sanitized before it is stored on a post log
	ScheduledAt time.Time
	// PlatformSettings is keyed by social account ID.
	PlatformSettings map[string]map[string]any
	Accounts         []SocialAccount
	MediaFiles       []MediaFile
}

// SocialAccount is a connected account on one platform.
type SocialAccount struct {
	ID          string
	Platform    string
	DisplayName string
}

// MediaFile is an uploaded asset.
type MediaFile struct {
	ID         string
	URL        string
	Descriptor platform.MediaDescriptor
}

// Domain errors.
var (
	ErrMissingIdentity = errors.New("publication id and tenant are required")
	ErrNoAccounts      = errors.New("publication has no target accounts")
	ErrUnknownAccount  = errors.New("account is not a target of this publication")
	ErrUnknownMedia    = errors.New("media file is not attached to this publication")
)

// Validate checks what a publish attempt needs.
func (p *Publication) Validate() error {
	if p.ID == "" || p.TenantID == "" {
		return ErrMissingIdentity
	}
	if len(p.Accounts) == 0 {
		return ErrNoAccounts
	}
	return nil
}

// SettingsFor returns the per-account settings, never nil.
func (p *Publication) SettingsFor(accountID string) map[string]any {
	if s, ok := p.PlatformSettings[accountID]; ok && s != nil {
		return s
	}
	return map[string]any{}
}

// RequestedType returns the content type the author picked for accountID, if any.
func (p *Publication) RequestedType(accountID string) string {
	if t, ok := p.SettingsFor(accountID)["type"].(string); ok {
		return t
	}
	return ""
}

