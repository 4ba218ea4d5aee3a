package vendors

import (
	"context"
	"fmt"
	"sync"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/lib/myvault"
	"github.com/carevista/practicebackend/services/credentials"
	"github.com/carevista/practicebackend/services/labcorp"
	"github.com/carevista/practicebackend/services/optum"
	"github.com/carevista/practicebackend/services/surescripts"
	"github.com/carevista/practicebackend/services/vendorapi"
)

type VendorStatus struct {
	Enabled    bool `json:"enabled"`
	Configured bool `json:"configured"`
}

// Manager constructs vendor adapters from stored credentials and caches them
// per vendor key. A credential change must be followed by Reload so the next
// caller gets an adapter built from the fresh configuration.
type Manager struct {
	credentialsVault myvault.VaultReadWriter[credentials.ProviderCredential]
	nower            mytime.Nower

	mutex sync.Mutex
	cache map[string]vendorapi.Vendor
}

func NewManager(credentialsVault myvault.VaultReadWriter[credentials.ProviderCredential], nower mytime.Nower) *Manager {
	return &Manager{
		credentialsVault: credentialsVault,
		nower:            nower,
		cache:            map[string]vendorapi.Vendor{},
	}
}

func (m *Manager) get(c context.Context, vendorKey string) (vendorapi.Vendor, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if adapter, found := m.cache[vendorKey]; found {
		return adapter, nil
	}

	cred, exists, err := m.credentialsVault.Get(c, vendorKey)
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching credential for vendor %s: %s", vendorKey, err))
	}
	if !exists {
		cred = credentials.ProviderCredential{ProviderKey: vendorKey, Settings: map[string]string{}}
	}

	var adapter vendorapi.Vendor
	switch vendorKey {
	case vendorapi.VendorLabcorp:
		adapter = labcorp.New(cred, m.nower)
	case vendorapi.VendorOptum:
		adapter = optum.New(cred, m.nower)
	case vendorapi.VendorSurescripts:
		adapter = surescripts.New(cred, m.nower)
	default:
		return nil, myerrors.NewNotFoundError(fmt.Errorf("unknown vendor %s", vendorKey))
	}

	m.cache[vendorKey] = adapter
	return adapter, nil
}

func (m *Manager) Get(c context.Context, vendorKey string) (vendorapi.Vendor, error) {
	return m.get(c, vendorKey)
}

func (m *Manager) Lab(c context.Context) (vendorapi.LabVendor, error) {
	adapter, err := m.get(c, vendorapi.VendorLabcorp)
	if err != nil {
		return nil, err
	}
	return adapter.(vendorapi.LabVendor), nil
}

func (m *Manager) Claims(c context.Context) (vendorapi.ClaimsVendor, error) {
	adapter, err := m.get(c, vendorapi.VendorOptum)
	if err != nil {
		return nil, err
	}
	return adapter.(vendorapi.ClaimsVendor), nil
}

func (m *Manager) Prescriptions(c context.Context) (vendorapi.PrescriptionVendor, error) {
	adapter, err := m.get(c, vendorapi.VendorSurescripts)
	if err != nil {
		return nil, err
	}
	return adapter.(vendorapi.PrescriptionVendor), nil
}

// Reload drops the cached adapter so the next call rebuilds it from the
// stored credential.
func (m *Manager) Reload(vendorKey string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.cache, vendorKey)
}

// Statuses reports enabled/configured per known vendor. Configured means
// credentials are present and the integration is switched on.
func (m *Manager) Statuses(c context.Context) (map[string]VendorStatus, error) {
	statuses := map[string]VendorStatus{}
	for _, vendorKey := range []string{vendorapi.VendorLabcorp, vendorapi.VendorOptum, vendorapi.VendorSurescripts} {
		cred, exists, err := m.credentialsVault.Get(c, vendorKey)
		if err != nil {
			return nil, myerrors.NewInternalError(fmt.Errorf("error fetching credential for vendor %s: %s", vendorKey, err))
		}
		if !exists {
			statuses[vendorKey] = VendorStatus{}
			continue
		}
		statuses[vendorKey] = VendorStatus{
			Enabled:    cred.IsEnabled,
			Configured: cred.HasClientID() && cred.ClientSecret != "" && cred.IsEnabled,
		}
	}
	return statuses, nil
}
