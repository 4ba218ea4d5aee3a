// Package labcorp is the lab-order adapter for the Labcorp API. Orders go
// out as FHIR ServiceRequests, authentication is a cached client-credentials
// bearer token.
package labcorp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/lib/mylog"
	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/services/credentials"
	"github.com/carevista/practicebackend/services/fhir"
	"github.com/carevista/practicebackend/services/vendorapi"
	"github.com/carevista/practicebackend/services/vendorclient"
)

const (
	sandboxBaseURL    = "https://sandbox-api.labcorp.com"
	productionBaseURL = "https://api.labcorp.com"

	tokenPath = "/oauth/token"
	grantBody = "grant_type=client_credentials&scope=api"

	defaultCancelReason = "Requested by provider"
)

type service struct {
	cred    credentials.ProviderCredential
	client  *vendorclient.Client
	account fhir.OrderAccount
	nower   mytime.Nower
	logger  mylog.Logger
}

// New constructs the adapter from a stored credential. The credential is a
// snapshot: a reconfigured vendor needs a fresh adapter.
func New(cred credentials.ProviderCredential, nower mytime.Nower) vendorapi.LabVendor {
	baseURL := resolveBaseURL(cred)
	return &service{
		cred: cred,
		client: vendorclient.New(baseURL,
			vendorclient.NewTokenCache(baseURL+tokenPath, cred.ClientID, cred.ClientSecret, grantBody, nower)),
		account: fhir.OrderAccount{
			AccountNumber: cred.Setting(credentials.SettingAccountNumber),
			FacilityID:    cred.Setting(credentials.SettingFacilityID),
		},
		nower:  nower,
		logger: mylog.New("labcorp"),
	}
}

func resolveBaseURL(cred credentials.ProviderCredential) string {
	if override := cred.Setting(credentials.SettingBaseURL); override != "" {
		return override
	}
	if cred.Setting(credentials.SettingSandboxMode) == "true" {
		return sandboxBaseURL
	}
	return productionBaseURL
}

func (s *service) Key() string {
	return vendorapi.VendorLabcorp
}

func (s *service) IsConfigured() bool {
	return s.cred.HasClientID() && s.cred.ClientSecret != "" && s.cred.IsEnabled
}

// guard short-circuits every operation before any network traffic when the
// vendor is disabled or lacks credentials.
func (s *service) guard() error {
	if !s.cred.IsEnabled {
		return myerrors.NewConfigurationError(fmt.Errorf("labcorp integration is not enabled"))
	}
	if s.cred.ClientID == "" || s.cred.ClientSecret == "" {
		return myerrors.NewConfigurationError(fmt.Errorf("labcorp credentials are not configured"))
	}
	return nil
}

func (s *service) TestConnection(c context.Context) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/v1/health", "", nil, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	result := vendorapi.SuccessResult("connected", "", respBody)
	result.Message = "Labcorp connection successful"
	return result
}

func (s *service) SubmitOrder(c context.Context, order vendorapi.LabOrder) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	payload, err := fhir.BuildServiceRequest(order, s.account, s.nower.Now())
	if err != nil {
		return vendorapi.FailureResult(err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return vendorapi.FailureResult(fmt.Errorf("error marshalling lab order: %s", err))
	}

	_, respBody, err := s.client.Execute(c, http.MethodPost, "/v1/orders", vendorclient.ContentTypeJSON, body, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	s.logger.Log(c, order.PatientID, mylog.SeverityInfo, "Submitted lab order for patient %s", order.PatientID)

	return vendorapi.SuccessResult("submitted", extractVendorOrderID(respBody), respBody)
}

func (s *service) GetOrderStatus(c context.Context, vendorOrderID string) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/v1/orders/"+vendorOrderID, "", nil, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	return vendorapi.SuccessResult(extractField(respBody, "status"), vendorOrderID, respBody)
}

func (s *service) GetResults(c context.Context, vendorOrderID string) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/v1/orders/"+vendorOrderID+"/results", "", nil, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	return vendorapi.SuccessResult("completed", vendorOrderID, respBody)
}

func (s *service) CancelOrder(c context.Context, vendorOrderID string, details vendorapi.Cancellation) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	reason := details.Reason
	if reason == "" {
		reason = defaultCancelReason
	}
	body, err := json.Marshal(map[string]string{
		"reason": reason,
		"notes":  details.Notes,
	})
	if err != nil {
		return vendorapi.FailureResult(fmt.Errorf("error marshalling cancellation: %s", err))
	}

	_, respBody, err := s.client.Execute(c, http.MethodPost, "/v1/orders/"+vendorOrderID+"/cancel", vendorclient.ContentTypeJSON, body, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	s.logger.Log(c, vendorOrderID, mylog.SeverityInfo, "Cancelled lab order %s", vendorOrderID)

	return vendorapi.SuccessResult("cancelled", vendorOrderID, respBody)
}

func (s *service) SearchTests(c context.Context, params vendorapi.SearchParams) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	query := url.Values{}
	for key, value := range params {
		query.Set(key, value)
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/v1/tests/search", "", nil, query)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	return vendorapi.SuccessResult("", "", respBody)
}

func (s *service) GetTestDetails(c context.Context, testCode string, codeType string) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	query := url.Values{}
	if codeType != "" {
		query.Set("codeType", codeType)
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/v1/tests/"+testCode, "", nil, query)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	return vendorapi.SuccessResult("", testCode, respBody)
}

// extractVendorOrderID prefers the order id, falls back to the accession
// number some responses carry instead.
func extractVendorOrderID(respBody []byte) string {
	resp := struct {
		OrderID         string `json:"orderId"`
		AccessionNumber string `json:"accessionNumber"`
	}{}
	_ = json.Unmarshal(respBody, &resp)
	if resp.OrderID != "" {
		return resp.OrderID
	}
	return resp.AccessionNumber
}

func extractField(respBody []byte, field string) string {
	resp := map[string]any{}
	_ = json.Unmarshal(respBody, &resp)
	value, _ := resp[field].(string)
	return value
}
