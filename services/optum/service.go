// Package optum is the claims-clearinghouse adapter for the Optum API.
// Claims and eligibility checks go out as FHIR resources, authentication is
// a cached client-credentials bearer token.
package optum

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/lib/mylog"
	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/services/credentials"
	"github.com/carevista/practicebackend/services/fhir"
	"github.com/carevista/practicebackend/services/vendorapi"
	"github.com/carevista/practicebackend/services/vendorclient"
)

const (
	sandboxBaseURL    = "https://sandbox.optuminsight.com"
	productionBaseURL = "https://api.optuminsight.com"

	tokenPath = "/oauth2/token"
	grantBody = "grant_type=client_credentials"

	defaultVoidReason = "Requested by provider"
)

type service struct {
	cred    credentials.ProviderCredential
	client  *vendorclient.Client
	routing fhir.ClaimRouting
	nower   mytime.Nower
	logger  mylog.Logger
}

func New(cred credentials.ProviderCredential, nower mytime.Nower) vendorapi.ClaimsVendor {
	baseURL := resolveBaseURL(cred)
	return &service{
		cred: cred,
		client: vendorclient.New(baseURL,
			vendorclient.NewTokenCache(baseURL+tokenPath, cred.ClientID, cred.ClientSecret, grantBody, nower)),
		routing: fhir.ClaimRouting{
			SubmitterID:      cred.Setting(credentials.SettingSubmitterID),
			ReceiverID:       cred.Setting(credentials.SettingReceiverID),
			TradingPartnerID: cred.Setting(credentials.SettingTradingPartnerID),
		},
		nower:  nower,
		logger: mylog.New("optum"),
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
	return vendorapi.VendorOptum
}

func (s *service) IsConfigured() bool {
	return s.cred.HasClientID() && s.cred.ClientSecret != "" && s.cred.IsEnabled
}

func (s *service) guard() error {
	if !s.cred.IsEnabled {
		return myerrors.NewConfigurationError(fmt.Errorf("optum integration is not enabled"))
	}
	if s.cred.ClientID == "" || s.cred.ClientSecret == "" {
		return myerrors.NewConfigurationError(fmt.Errorf("optum credentials are not configured"))
	}
	return nil
}

func (s *service) TestConnection(c context.Context) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/v1/ping", "", nil, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	result := vendorapi.SuccessResult("connected", "", respBody)
	result.Message = "Optum connection successful"
	return result
}

func (s *service) SubmitClaim(c context.Context, claim vendorapi.Claim) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	payload, err := fhir.BuildClaim(claim, s.routing)
	if err != nil {
		return vendorapi.FailureResult(err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return vendorapi.FailureResult(fmt.Errorf("error marshalling claim: %s", err))
	}

	_, respBody, err := s.client.Execute(c, http.MethodPost, "/v1/claims", vendorclient.ContentTypeJSON, body, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	s.logger.Log(c, claim.PatientID, mylog.SeverityInfo, "Submitted claim for patient %s", claim.PatientID)

	return vendorapi.SuccessResult("submitted", extractClaimID(respBody), respBody)
}

func (s *service) GetClaimStatus(c context.Context, vendorClaimID string) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/v1/claims/"+vendorClaimID+"/status", "", nil, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	return vendorapi.SuccessResult(extractField(respBody, "status"), vendorClaimID, respBody)
}

func (s *service) GetRemittance(c context.Context, vendorClaimID string) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/v1/claims/"+vendorClaimID+"/remittance", "", nil, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	return vendorapi.SuccessResult("remitted", vendorClaimID, respBody)
}

func (s *service) VerifyEligibility(c context.Context, req vendorapi.Eligibility) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	payload, err := fhir.BuildEligibilityRequest(req, s.nower.Now())
	if err != nil {
		return vendorapi.FailureResult(err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return vendorapi.FailureResult(fmt.Errorf("error marshalling eligibility request: %s", err))
	}

	_, respBody, err := s.client.Execute(c, http.MethodPost, "/v1/eligibility", vendorclient.ContentTypeJSON, body, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	return vendorapi.SuccessResult("verified", "", respBody)
}

func (s *service) VoidClaim(c context.Context, vendorClaimID string, details vendorapi.Cancellation) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	reason := details.Reason
	if reason == "" {
		reason = defaultVoidReason
	}
	body, err := json.Marshal(map[string]string{
		"reason": reason,
		"notes":  details.Notes,
	})
	if err != nil {
		return vendorapi.FailureResult(fmt.Errorf("error marshalling void request: %s", err))
	}

	_, respBody, err := s.client.Execute(c, http.MethodPost, "/v1/claims/"+vendorClaimID+"/void", vendorclient.ContentTypeJSON, body, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	s.logger.Log(c, vendorClaimID, mylog.SeverityInfo, "Voided claim %s", vendorClaimID)

	return vendorapi.SuccessResult("voided", vendorClaimID, respBody)
}

// extractClaimID prefers the clearinghouse claim id, falls back to the X12
// control number.
func extractClaimID(respBody []byte) string {
	resp := struct {
		ClaimID       string `json:"claimId"`
		ControlNumber string `json:"controlNumber"`
	}{}
	_ = json.Unmarshal(respBody, &resp)
	if resp.ClaimID != "" {
		return resp.ClaimID
	}
	return resp.ControlNumber
}

func extractField(respBody []byte, field string) string {
	resp := map[string]any{}
	_ = json.Unmarshal(respBody, &resp)
	value, _ := resp[field].(string)
	return value
}
