package providers

import "fmt"

const (
	CategoryTelehealth = "telehealth"
	CategoryBackup     = "backup"
	CategoryVendor     = "vendor"
)

// Descriptor describes how a single provider authenticates. OAuth providers
// carry their endpoints and default scope; api-key vendors short-circuit the
// oauth flow entirely.
type Descriptor struct {
	Key           string
	Category      string
	AuthURL       string
	TokenURL      string
	DefaultScope  string
	OfflineAccess bool
	APIKeyOnly    bool
}

type Registry interface {
	All() map[string]Descriptor
	Get(providerKey string) (Descriptor, error)
	Set(providerKey string, authURL string, tokenURL string)
}

type providerRegistry struct {
	descriptors map[string]Descriptor
}

func NewRegistry() *providerRegistry {
	return &providerRegistry{
		descriptors: map[string]Descriptor{
			"zoom": {
				Key:          "zoom",
				Category:     CategoryTelehealth,
				AuthURL:      "https://zoom.us/oauth/authorize",
				TokenURL:     "https://zoom.us/oauth/token",
				DefaultScope: "meeting:write meeting:read user:read",
			},
			"google_meet": {
				Key:          "google_meet",
				Category:     CategoryTelehealth,
				AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL:     "https://oauth2.googleapis.com/token",
				DefaultScope: "https://www.googleapis.com/auth/calendar https://www.googleapis.com/auth/meetings.space.created",
				// Google only returns a refresh-token when offline access is requested
				OfflineAccess: true,
			},
			"webex": {
				Key:          "webex",
				Category:     CategoryTelehealth,
				AuthURL:      "https://webexapis.com/v1/authorize",
				TokenURL:     "https://webexapis.com/v1/access_token",
				DefaultScope: "meeting:schedules_write meeting:schedules_read",
			},
			"google_drive": {
				Key:           "google_drive",
				Category:      CategoryBackup,
				AuthURL:       "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL:      "https://oauth2.googleapis.com/token",
				DefaultScope:  "https://www.googleapis.com/auth/drive.file",
				OfflineAccess: true,
			},
			"onedrive": {
				Key:          "onedrive",
				Category:     CategoryBackup,
				AuthURL:      "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
				TokenURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/token",
				DefaultScope: "Files.ReadWrite offline_access",
			},
			"surescripts": {
				Key:        "surescripts",
				Category:   CategoryVendor,
				APIKeyOnly: true,
			},
			"labcorp": {
				Key:        "labcorp",
				Category:   CategoryVendor,
				APIKeyOnly: true,
			},
			"optum": {
				Key:        "optum",
				Category:   CategoryVendor,
				APIKeyOnly: true,
			},
		},
	}
}

func (pr *providerRegistry) All() map[string]Descriptor {
	return pr.descriptors
}

func (pr *providerRegistry) Get(providerKey string) (Descriptor, error) {
	descriptor, found := pr.descriptors[providerKey]
	if !found {
		return Descriptor{}, fmt.Errorf("provider with key '%s' not found", providerKey)
	}
	return descriptor, nil
}

// Set overrides the endpoints of a provider, used to point at sandbox or
// test servers.
func (pr *providerRegistry) Set(providerKey string, authURL string, tokenURL string) {
	descriptor, found := pr.descriptors[providerKey]
	if !found {
		descriptor = Descriptor{Key: providerKey}
	}

	if authURL != "" {
		descriptor.AuthURL = authURL
	}

	if tokenURL != "" {
		descriptor.TokenURL = tokenURL
	}

	pr.descriptors[providerKey] = descriptor
}
