package publication

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublication_Validate(t *testing.T) {
	p := Publication{ID: "42", TenantID: "t1", Accounts: []SocialAccount{{ID: "7", Platform: "instagram"}}}
	assert.NoError(t, p.Validate())

	p.Accounts = nil
	assert.ErrorIs(t, p.Validate(), ErrNoAccounts)

	p.TenantID = ""
	assert.Error(t, p.Validate())
}

func TestPublication_Settings(t *testing.T) {
	p := Publication{PlatformSettings: map[string]map[string]any{
		"7": {"type": "reel", "first_comment": "#launch"},
	}}
	assert.Equal(t, "reel", p.RequestedType("7"))
	assert.Equal(t, "", p.RequestedType("8"))
	assert.NotNil(t, p.SettingsFor("8"))
}
