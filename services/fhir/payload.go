// Package fhir maps domain requests onto the FHIR resources the lab and
// claims vendors accept. Builders are deterministic and side-effect free:
// given the same input and clock they produce the same resource.
package fhir

import (
	"fmt"
	"time"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/services/vendorapi"
)

const (
	systemLOINC           = "http://loinc.org"
	systemICD10           = "http://hl7.org/fhir/sid/icd-10"
	systemSpecimenType    = "http://terminology.hl7.org/CodeSystem/v2-0487"
	systemClaimType       = "http://terminology.hl7.org/CodeSystem/claim-type"
	systemProcessPriority = "http://terminology.hl7.org/CodeSystem/processpriority"
	systemCPT             = "http://www.ama-assn.org/go/cpt"
	systemNPI             = "http://hl7.org/fhir/sid/us-npi"
	systemIdentifierType  = "http://terminology.hl7.org/CodeSystem/v2-0203"
)

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding"`
	Text   string   `json:"text,omitempty"`
}

type Identifier struct {
	Type   *CodeableConcept `json:"type,omitempty"`
	System string           `json:"system,omitempty"`
	Value  string           `json:"value"`
}

type Reference struct {
	Reference  string      `json:"reference"`
	Display    string      `json:"display,omitempty"`
	Identifier *Identifier `json:"identifier,omitempty"`
}

type Annotation struct {
	Text string `json:"text"`
}

type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Quantity struct {
	Value int `json:"value"`
}

type Money struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

type Specimen struct {
	Type CodeableConcept `json:"type"`
}

type Occurrence struct {
	OccurrenceDateTime string `json:"occurrenceDateTime"`
}

// OrderAccount carries the ordering account block the lab vendor expects
// inside a ServiceRequest.
type OrderAccount struct {
	AccountNumber string `json:"accountNumber"`
	FacilityID    string `json:"facilityId"`
}

type ServiceRequest struct {
	ResourceType string            `json:"resourceType"`
	Status       string            `json:"status"`
	Intent       string            `json:"intent"`
	Priority     string            `json:"priority"`
	Subject      Reference         `json:"subject"`
	Requester    Reference         `json:"requester"`
	Code         CodeableConcept   `json:"code"`
	ReasonCode   []CodeableConcept `json:"reasonCode"`
	Note         []Annotation      `json:"note"`
	Specimen     []Specimen        `json:"specimen,omitempty"`
	Insurance    OrderAccount      `json:"insurance"`
	Occurrence   Occurrence        `json:"occurrence"`
}

// BuildServiceRequest maps a lab order onto a FHIR ServiceRequest. The test
// code system defaults to LOINC, diagnosis codes are coded as ICD-10 and the
// collection moment falls back to now.
func BuildServiceRequest(order vendorapi.LabOrder, account OrderAccount, now time.Time) (ServiceRequest, error) {
	if order.PatientID == "" {
		return ServiceRequest{}, myerrors.NewPayloadValidationError(fmt.Errorf("lab order is missing a patient"))
	}
	if order.ProviderID == "" {
		return ServiceRequest{}, myerrors.NewPayloadValidationError(fmt.Errorf("lab order is missing an ordering provider"))
	}
	if len(order.TestCodes) == 0 {
		return ServiceRequest{}, myerrors.NewPayloadValidationError(fmt.Errorf("lab order carries no test codes"))
	}

	priority := order.Priority
	if priority == "" {
		priority = "routine"
	}

	codings := make([]Coding, 0, len(order.TestCodes))
	testText := ""
	for _, tc := range order.TestCodes {
		system := tc.System
		if system == "" {
			system = systemLOINC
		}
		codings = append(codings, Coding{System: system, Code: tc.Code, Display: tc.Display})
		if testText != "" {
			testText += ", "
		}
		testText += tc.Display
	}

	reasonCodes := make([]CodeableConcept, 0, len(order.DiagnosisCodes))
	for _, dc := range order.DiagnosisCodes {
		reasonCodes = append(reasonCodes, CodeableConcept{
			Coding: []Coding{{System: systemICD10, Code: dc.Code, Display: dc.Display}},
		})
	}

	collectionDate := now
	if order.CollectionDate != nil {
		collectionDate = *order.CollectionDate
	}

	req := ServiceRequest{
		ResourceType: "ServiceRequest",
		Status:       "active",
		Intent:       "order",
		Priority:     priority,
		Subject: Reference{
			Reference: "Patient/" + order.PatientID,
			Display:   order.PatientName,
		},
		Requester: Reference{
			Reference: "Practitioner/" + order.ProviderID,
			Display:   order.ProviderName,
		},
		Code: CodeableConcept{
			Coding: codings,
			Text:   testText,
		},
		ReasonCode: reasonCodes,
		Note:       []Annotation{{Text: order.ClinicalNotes}},
		Insurance:  account,
		Occurrence: Occurrence{
			OccurrenceDateTime: collectionDate.UTC().Format(time.RFC3339),
		},
	}

	if order.SpecimenType != "" {
		req.Specimen = []Specimen{{
			Type: CodeableConcept{
				Coding: []Coding{{System: systemSpecimenType, Code: order.SpecimenType}},
			},
		}}
	}

	return req, nil
}

type ClaimDiagnosis struct {
	Sequence                 int             `json:"sequence"`
	DiagnosisCodeableConcept CodeableConcept `json:"diagnosisCodeableConcept"`
}

type ClaimItem struct {
	Sequence         int             `json:"sequence"`
	ProductOrService CodeableConcept `json:"productOrService"`
	ServicedDate     string          `json:"servicedDate"`
	Quantity         Quantity        `json:"quantity"`
	UnitPrice        Money           `json:"unitPrice"`
	Net              Money           `json:"net"`
}

// ClaimRouting identifies submitter and receiver towards the clearinghouse.
type ClaimRouting struct {
	SubmitterID      string `json:"submitterId"`
	ReceiverID       string `json:"receiverId"`
	TradingPartnerID string `json:"tradingPartnerId"`
}

type Claim struct {
	ResourceType   string           `json:"resourceType"`
	Status         string           `json:"status"`
	Type           CodeableConcept  `json:"type"`
	Use            string           `json:"use"`
	Patient        Reference        `json:"patient"`
	BillablePeriod Period           `json:"billablePeriod"`
	Provider       Reference        `json:"provider"`
	Insurer        Reference        `json:"insurer"`
	Priority       CodeableConcept  `json:"priority"`
	Diagnosis      []ClaimDiagnosis `json:"diagnosis"`
	Item           []ClaimItem      `json:"item"`
	Total          Money            `json:"total"`
	Meta           ClaimRouting     `json:"meta"`
}

// BuildClaim maps a claim onto a FHIR Claim resource. Diagnosis and service
// lines are sequenced 1..n, line quantity defaults to 1 and the line net is
// quantity times charge.
func BuildClaim(claim vendorapi.Claim, routing ClaimRouting) (Claim, error) {
	if claim.PatientID == "" {
		return Claim{}, myerrors.NewPayloadValidationError(fmt.Errorf("claim is missing a patient"))
	}
	if claim.ProviderID == "" {
		return Claim{}, myerrors.NewPayloadValidationError(fmt.Errorf("claim is missing a billing provider"))
	}
	if len(claim.ProcedureCodes) == 0 {
		return Claim{}, myerrors.NewPayloadValidationError(fmt.Errorf("claim carries no service lines"))
	}

	claimType := claim.ClaimType
	if claimType == "" {
		claimType = "professional"
	}

	serviceDate := claim.ServiceDate.Format("2006-01-02")
	serviceDateEnd := serviceDate
	if claim.ServiceDateEnd != nil {
		serviceDateEnd = claim.ServiceDateEnd.Format("2006-01-02")
	}

	diagnoses := make([]ClaimDiagnosis, 0, len(claim.DiagnosisCodes))
	for idx, dc := range claim.DiagnosisCodes {
		diagnoses = append(diagnoses, ClaimDiagnosis{
			Sequence: idx + 1,
			DiagnosisCodeableConcept: CodeableConcept{
				Coding: []Coding{{System: systemICD10, Code: dc.Code, Display: dc.Display}},
			},
		})
	}

	items := make([]ClaimItem, 0, len(claim.ProcedureCodes))
	for idx, proc := range claim.ProcedureCodes {
		quantity := proc.Quantity
		if quantity == 0 {
			quantity = 1
		}
		items = append(items, ClaimItem{
			Sequence: idx + 1,
			ProductOrService: CodeableConcept{
				Coding: []Coding{{System: systemCPT, Code: proc.Code, Display: proc.Display}},
			},
			ServicedDate: serviceDate,
			Quantity:     Quantity{Value: quantity},
			UnitPrice:    Money{Value: proc.Charge, Currency: "USD"},
			Net:          Money{Value: float64(quantity) * proc.Charge, Currency: "USD"},
		})
	}

	return Claim{
		ResourceType: "Claim",
		Status:       "active",
		Type: CodeableConcept{
			Coding: []Coding{{System: systemClaimType, Code: claimType}},
		},
		Use: "claim",
		Patient: Reference{
			Reference: "Patient/" + claim.PatientID,
			Display:   claim.PatientName,
		},
		BillablePeriod: Period{
			Start: serviceDate,
			End:   serviceDateEnd,
		},
		Provider: Reference{
			Reference: "Practitioner/" + claim.ProviderID,
			Identifier: &Identifier{
				System: systemNPI,
				Value:  claim.ProviderNPI,
			},
		},
		Insurer: Reference{
			Reference: "Organization/" + claim.PayerID,
			Identifier: &Identifier{
				System: systemNPI,
				Value:  claim.PayerIdentifier,
			},
		},
		Priority: CodeableConcept{
			Coding: []Coding{{System: systemProcessPriority, Code: "normal"}},
		},
		Diagnosis: diagnoses,
		Item:      items,
		Total:     Money{Value: claim.ClaimAmount, Currency: "USD"},
		Meta:      routing,
	}, nil
}

type CoverageEligibilityRequest struct {
	ResourceType string    `json:"resourceType"`
	Status       string    `json:"status"`
	Purpose      []string  `json:"purpose"`
	Patient      Reference `json:"patient"`
	ServicedDate string    `json:"servicedDate"`
	Insurer      Reference `json:"insurer"`
	Provider     Reference `json:"provider"`
}

// BuildEligibilityRequest maps an eligibility check onto a FHIR
// CoverageEligibilityRequest. The patient is identified by member number
// (identifier type MB) and the serviced date defaults to today.
func BuildEligibilityRequest(req vendorapi.Eligibility, now time.Time) (CoverageEligibilityRequest, error) {
	if req.PatientID == "" {
		return CoverageEligibilityRequest{}, myerrors.NewPayloadValidationError(fmt.Errorf("eligibility check is missing a patient"))
	}
	if req.MemberID == "" {
		return CoverageEligibilityRequest{}, myerrors.NewPayloadValidationError(fmt.Errorf("eligibility check is missing a member id"))
	}

	servicedDate := now.UTC().Format("2006-01-02")
	if req.ServiceDate != nil {
		servicedDate = req.ServiceDate.Format("2006-01-02")
	}

	return CoverageEligibilityRequest{
		ResourceType: "CoverageEligibilityRequest",
		Status:       "active",
		Purpose:      []string{"validation"},
		Patient: Reference{
			Reference: "Patient/" + req.PatientID,
			Identifier: &Identifier{
				Type: &CodeableConcept{
					Coding: []Coding{{System: systemIdentifierType, Code: "MB"}},
				},
				Value: req.MemberID,
			},
		},
		ServicedDate: servicedDate,
		Insurer: Reference{
			Reference: "Organization/" + req.PayerID,
			Identifier: &Identifier{
				Value: req.PayerIdentifier,
			},
		},
		Provider: Reference{
			Reference: "Practitioner/" + req.ProviderID,
		},
	}, nil
}
