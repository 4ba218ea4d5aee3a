package vendorapi

import (
	"encoding/json"
	"time"

	"github.com/carevista/practicebackend/lib/myerrors"
)

// Vendor keys, validated at adapter construction time.
const (
	VendorLabcorp     = "labcorp"
	VendorOptum       = "optum"
	VendorSurescripts = "surescripts"
)

type TestCode struct {
	System  string
	Code    string
	Display string
}

type DiagnosisCode struct {
	Code    string
	Display string
}

type ProcedureCode struct {
	Code     string
	Display  string
	Quantity int
	Charge   float64
}

type LabOrder struct {
	PatientID      string
	PatientName    string
	ProviderID     string
	ProviderName   string
	Priority       string
	TestCodes      []TestCode
	DiagnosisCodes []DiagnosisCode
	ClinicalNotes  string
	SpecimenType   string
	CollectionDate *time.Time
}

type Claim struct {
	PatientID       string
	PatientName     string
	ProviderID      string
	ProviderNPI     string
	PayerID         string
	PayerIdentifier string
	ClaimType       string
	ServiceDate     time.Time
	ServiceDateEnd  *time.Time
	DiagnosisCodes  []DiagnosisCode
	ProcedureCodes  []ProcedureCode
	ClaimAmount     float64
}

type Eligibility struct {
	PatientID       string
	MemberID        string
	PayerID         string
	PayerIdentifier string
	ProviderID      string
	ServiceDate     *time.Time
}

type Prescription struct {
	PatientID          string
	PatientFirstName   string
	PatientLastName    string
	PatientDateOfBirth string
	PatientGender      string

	PrescriberNPI       string
	PrescriberDEA       string
	PrescriberFirstName string
	PrescriberLastName  string

	MedicationName     string
	NDCCode            string
	Quantity           string
	QuantityUnit       string
	DaysSupply         int
	AllowSubstitutions bool
	Instructions       string
	Refills            int

	PharmacyNCPDPID string
}

type Cancellation struct {
	Reason string
	Notes  string
}

type SearchParams map[string]string

// Payload carries a vendor body verbatim. Vendors answer JSON, NCPDP XML or
// even HTML error pages; JSON bytes are embedded as-is and anything else is
// encoded as a JSON string so a Result always marshals.
type Payload []byte

func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	if json.Valid(p) {
		return p, nil
	}
	return json.Marshal(string(p))
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*p = Payload(text)
		return nil
	}
	*p = append((*p)[:0], data...)
	return nil
}

// Result is the discriminated outcome of every adapter operation. Adapters
// never let an error escape: callers branch on Success only. The verbatim
// vendor body travels in Response so upstream business logic can interpret
// vendor-specific codes.
type Result struct {
	Success  bool    `json:"success"`
	Status   string  `json:"status,omitempty"`
	VendorID string  `json:"vendorId,omitempty"`
	Message  string  `json:"message,omitempty"`
	Error    string  `json:"error,omitempty"`
	Response Payload `json:"response,omitempty"`
}

func SuccessResult(status string, vendorID string, response []byte) Result {
	return Result{
		Success:  true,
		Status:   status,
		VendorID: vendorID,
		Response: response,
	}
}

func FailureResult(err error) Result {
	return Result{
		Success:  false,
		Status:   "failed",
		Error:    err.Error(),
		Response: myerrors.GetVendorPayload(err),
	}
}
