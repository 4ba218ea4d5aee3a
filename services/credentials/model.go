package credentials

import (
	"strconv"
	"time"
)

// Settings keys. The settings blob is opaque to the store: oauth providers
// keep their tokens here, vendors keep their routing identifiers.
const (
	SettingAccessToken  = "access_token"
	SettingRefreshToken = "refresh_token"
	SettingExpiresAt    = "expires_at" // epoch millis
	SettingScope        = "scope"

	SettingBaseURL     = "base_url"
	SettingSandboxMode = "sandbox_mode"

	// labcorp
	SettingAccountNumber = "account_number"
	SettingFacilityID    = "facility_id"

	// optum clearinghouse routing
	SettingSubmitterID      = "submitter_id"
	SettingReceiverID       = "receiver_id"
	SettingTradingPartnerID = "trading_partner_id"

	// surescripts
	SettingSPI       = "spi"
	SettingAccountID = "account_id"

	// zoom jwt fallback
	SettingAPIKey    = "api_key"
	SettingAPISecret = "api_secret"
	SettingUserID    = "user_id"
	SettingUseOAuth  = "use_oauth"
)

type ProviderCredential struct {
	ProviderKey  string
	ClientID     string
	ClientSecret string
	IsEnabled    bool
	Settings     map[string]string
	CreatedAt    time.Time
	LastModified *time.Time
}

func (pc ProviderCredential) Setting(key string) string {
	if pc.Settings == nil {
		return ""
	}
	return pc.Settings[key]
}

func (pc ProviderCredential) HasClientID() bool {
	return pc.ClientID != ""
}

func (pc ProviderCredential) HasTokens() bool {
	return pc.Setting(SettingAccessToken) != ""
}

// IsConfigured is computed, never stored: a provider is configured iff it has
// both a client-id and an access-token.
func (pc ProviderCredential) IsConfigured() bool {
	return pc.HasClientID() && pc.HasTokens()
}

func (pc ProviderCredential) AccessToken() string {
	return pc.Setting(SettingAccessToken)
}

func (pc ProviderCredential) RefreshToken() string {
	return pc.Setting(SettingRefreshToken)
}

// ExpiresAt parses the stored epoch-millis expiry. The second return value is
// false when no expiry is known.
func (pc ProviderCredential) ExpiresAt() (time.Time, bool) {
	value := pc.Setting(SettingExpiresAt)
	if value == "" {
		return time.Time{}, false
	}

	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	return time.UnixMilli(millis), true
}

func FormatExpiresAt(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
