// Package surescripts is the e-prescribing adapter for the Surescripts
// network. Prescriptions travel as NCPDP SCRIPT XML, authentication is a
// static credential-derived bearer token.
package surescripts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/lib/mylog"
	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/lib/myuuid"
	"github.com/carevista/practicebackend/services/credentials"
	"github.com/carevista/practicebackend/services/ncpdp"
	"github.com/carevista/practicebackend/services/vendorapi"
	"github.com/carevista/practicebackend/services/vendorclient"
)

const (
	certificationBaseURL = "https://cert.surescripts.net"
	productionBaseURL    = "https://production.surescripts.net"
)

type service struct {
	cred       credentials.ProviderCredential
	client     *vendorclient.Client
	spi        string
	messageIDs ncpdp.MessageIDGenerator
	nower      mytime.Nower
	logger     mylog.Logger
}

func New(cred credentials.ProviderCredential, nower mytime.Nower) vendorapi.PrescriptionVendor {
	return &service{
		cred: cred,
		client: vendorclient.New(resolveBaseURL(cred),
			vendorclient.StaticTokenAuthorizer{Token: deriveToken(cred)}),
		spi:        cred.Setting(credentials.SettingSPI),
		messageIDs: ncpdp.NewMessageIDGenerator(cred.Setting(credentials.SettingAccountID), myuuid.RealUUIDer{}, nower),
		nower:      nower,
		logger:     mylog.New("surescripts"),
	}
}

func resolveBaseURL(cred credentials.ProviderCredential) string {
	if override := cred.Setting(credentials.SettingBaseURL); override != "" {
		return override
	}
	if cred.Setting(credentials.SettingSandboxMode) == "true" {
		return certificationBaseURL
	}
	return productionBaseURL
}

// deriveToken builds the network's credential-derived bearer token. There is
// no token endpoint: the credential pair itself authenticates each call.
func deriveToken(cred credentials.ProviderCredential) string {
	if cred.ClientID == "" || cred.ClientSecret == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(cred.ClientID + ":" + cred.ClientSecret))
}

func (s *service) Key() string {
	return vendorapi.VendorSurescripts
}

func (s *service) IsConfigured() bool {
	return s.cred.HasClientID() && s.cred.ClientSecret != "" && s.cred.IsEnabled
}

func (s *service) guard() error {
	if !s.cred.IsEnabled {
		return myerrors.NewConfigurationError(fmt.Errorf("surescripts integration is not enabled"))
	}
	if s.cred.ClientID == "" || s.cred.ClientSecret == "" {
		return myerrors.NewConfigurationError(fmt.Errorf("surescripts credentials are not configured"))
	}
	return nil
}

func (s *service) TestConnection(c context.Context) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/v1/status", "", nil, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	result := vendorapi.SuccessResult("connected", "", respBody)
	result.Message = "Successfully connected to Surescripts"
	return result
}

func (s *service) SendPrescription(c context.Context, prescription vendorapi.Prescription) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	messageID := s.messageIDs.Create()
	message, err := ncpdp.BuildNewRx(prescription, s.spi, messageID, s.nower.Now())
	if err != nil {
		return vendorapi.FailureResult(err)
	}
	body, err := ncpdp.Marshal(message)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	_, respBody, err := s.client.Execute(c, http.MethodPost, "/v1/prescriptions", vendorclient.ContentTypeXML, body, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	s.logger.Log(c, messageID, mylog.SeverityInfo, "Sent prescription %s to pharmacy %s", messageID, prescription.PharmacyNCPDPID)

	vendorID := extractField(respBody, "messageId")
	if vendorID == "" {
		vendorID = extractField(respBody, "prescriptionId")
	}
	return vendorapi.SuccessResult("sent", vendorID, respBody)
}

func (s *service) GetPrescriptionStatus(c context.Context, vendorPrescriptionID string) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/v1/prescriptions/"+vendorPrescriptionID+"/status", "", nil, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	return vendorapi.SuccessResult(extractField(respBody, "status"), vendorPrescriptionID, respBody)
}

func (s *service) CancelPrescription(c context.Context, vendorPrescriptionID string, details vendorapi.Cancellation) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	messageID := s.messageIDs.Create()
	message, err := ncpdp.BuildCancelRx(vendorPrescriptionID, details, "", s.spi, messageID, s.nower.Now())
	if err != nil {
		return vendorapi.FailureResult(err)
	}
	body, err := ncpdp.Marshal(message)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	_, respBody, err := s.client.Execute(c, http.MethodPost, "/v1/prescriptions/"+vendorPrescriptionID+"/cancel", vendorclient.ContentTypeXML, body, nil)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	s.logger.Log(c, vendorPrescriptionID, mylog.SeverityInfo, "Cancelled prescription %s", vendorPrescriptionID)

	return vendorapi.SuccessResult("cancelled", vendorPrescriptionID, respBody)
}

func (s *service) SearchPharmacies(c context.Context, params vendorapi.SearchParams) vendorapi.Result {
	if err := s.guard(); err != nil {
		return vendorapi.FailureResult(err)
	}

	query := url.Values{}
	for key, value := range params {
		query.Set(key, value)
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/v1/pharmacies/search", "", nil, query)
	if err != nil {
		return vendorapi.FailureResult(err)
	}

	return vendorapi.SuccessResult("", "", respBody)
}

func extractField(respBody []byte, field string) string {
	resp := map[string]any{}
	_ = json.Unmarshal(respBody, &resp)
	value, _ := resp[field].(string)
	return value
}
