package fhir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/services/vendorapi"
)

func TestBuildServiceRequest(t *testing.T) {
	account := OrderAccount{AccountNumber: "ACC-1", FacilityID: "FAC-1"}

	t.Run("Two test codes and one diagnosis code", func(t *testing.T) {
		order := vendorapi.LabOrder{
			PatientID:    "p123",
			PatientName:  "Jane Smith",
			ProviderID:   "dr456",
			ProviderName: "Dr. Jones",
			TestCodes: []vendorapi.TestCode{
				{Code: "58410-2", Display: "CBC panel"},
				{System: "http://www.ama-assn.org/go/cpt", Code: "80053", Display: "Metabolic panel"},
			},
			DiagnosisCodes: []vendorapi.DiagnosisCode{
				{Code: "E11.9", Display: "Type 2 diabetes"},
			},
			ClinicalNotes: "fasting",
			SpecimenType:  "BLD",
		}

		req, err := BuildServiceRequest(order, account, mytime.ExampleTime)
		assert.NoError(t, err)

		assert.Equal(t, "ServiceRequest", req.ResourceType)
		assert.Equal(t, "active", req.Status)
		assert.Equal(t, "order", req.Intent)
		assert.Equal(t, "routine", req.Priority)
		assert.Equal(t, "Patient/p123", req.Subject.Reference)
		assert.Equal(t, "Practitioner/dr456", req.Requester.Reference)

		assert.Len(t, req.Code.Coding, 2)
		assert.Equal(t, "http://loinc.org", req.Code.Coding[0].System)
		assert.Equal(t, "http://www.ama-assn.org/go/cpt", req.Code.Coding[1].System)
		assert.Equal(t, "CBC panel, Metabolic panel", req.Code.Text)

		assert.Len(t, req.ReasonCode, 1)
		assert.Equal(t, "http://hl7.org/fhir/sid/icd-10", req.ReasonCode[0].Coding[0].System)
		assert.Equal(t, "E11.9", req.ReasonCode[0].Coding[0].Code)

		assert.Len(t, req.Specimen, 1)
		assert.Equal(t, "BLD", req.Specimen[0].Type.Coding[0].Code)
		assert.Equal(t, account, req.Insurance)
		assert.Equal(t, "2025-03-31T23:58:59Z", req.Occurrence.OccurrenceDateTime)
	})

	t.Run("Collection date passthrough", func(t *testing.T) {
		collectionDate := time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC)
		order := vendorapi.LabOrder{
			PatientID:      "p123",
			ProviderID:     "dr456",
			TestCodes:      []vendorapi.TestCode{{Code: "58410-2"}},
			CollectionDate: &collectionDate,
			Priority:       "stat",
		}

		req, err := BuildServiceRequest(order, account, mytime.ExampleTime)
		assert.NoError(t, err)
		assert.Equal(t, "stat", req.Priority)
		assert.Equal(t, "2025-04-02T08:30:00Z", req.Occurrence.OccurrenceDateTime)
		assert.Empty(t, req.Specimen)
	})

	t.Run("Missing required fields", func(t *testing.T) {
		_, err := BuildServiceRequest(vendorapi.LabOrder{ProviderID: "dr456", TestCodes: []vendorapi.TestCode{{Code: "x"}}}, account, mytime.ExampleTime)
		assert.True(t, myerrors.IsPayloadValidationError(err))

		_, err = BuildServiceRequest(vendorapi.LabOrder{PatientID: "p123", TestCodes: []vendorapi.TestCode{{Code: "x"}}}, account, mytime.ExampleTime)
		assert.True(t, myerrors.IsPayloadValidationError(err))

		_, err = BuildServiceRequest(vendorapi.LabOrder{PatientID: "p123", ProviderID: "dr456"}, account, mytime.ExampleTime)
		assert.True(t, myerrors.IsPayloadValidationError(err))
	})
}

func TestBuildClaim(t *testing.T) {
	routing := ClaimRouting{SubmitterID: "SUB1", ReceiverID: "RCV1", TradingPartnerID: "TP1"}

	t.Run("Line math and sequencing", func(t *testing.T) {
		claim := vendorapi.Claim{
			PatientID:       "p123",
			PatientName:     "Jane Smith",
			ProviderID:      "dr456",
			ProviderNPI:     "1234567890",
			PayerID:         "payer1",
			PayerIdentifier: "87726",
			ServiceDate:     time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
			DiagnosisCodes: []vendorapi.DiagnosisCode{
				{Code: "E11.9"},
				{Code: "I10"},
			},
			ProcedureCodes: []vendorapi.ProcedureCode{
				{Code: "99213", Charge: 125.50},
				{Code: "36415", Quantity: 2, Charge: 15.00},
			},
			ClaimAmount: 155.50,
		}

		result, err := BuildClaim(claim, routing)
		assert.NoError(t, err)

		assert.Equal(t, "Claim", result.ResourceType)
		assert.Equal(t, "professional", result.Type.Coding[0].Code)
		assert.Equal(t, "2025-03-15", result.BillablePeriod.Start)
		assert.Equal(t, "2025-03-15", result.BillablePeriod.End)
		assert.Equal(t, "1234567890", result.Provider.Identifier.Value)
		assert.Equal(t, "87726", result.Insurer.Identifier.Value)

		assert.Len(t, result.Diagnosis, 2)
		assert.Equal(t, 1, result.Diagnosis[0].Sequence)
		assert.Equal(t, 2, result.Diagnosis[1].Sequence)

		assert.Len(t, result.Item, 2)
		assert.Equal(t, 1, result.Item[0].Quantity.Value)
		assert.Equal(t, 125.50, result.Item[0].Net.Value)
		assert.Equal(t, 2, result.Item[1].Quantity.Value)
		assert.Equal(t, 15.00, result.Item[1].UnitPrice.Value)
		assert.Equal(t, 30.00, result.Item[1].Net.Value)

		assert.Equal(t, 155.50, result.Total.Value)
		assert.Equal(t, routing, result.Meta)
	})

	t.Run("Missing service lines", func(t *testing.T) {
		_, err := BuildClaim(vendorapi.Claim{PatientID: "p123", ProviderID: "dr456"}, routing)
		assert.True(t, myerrors.IsPayloadValidationError(err))
	})
}

func TestBuildEligibilityRequest(t *testing.T) {
	t.Run("Member identifier and default serviced date", func(t *testing.T) {
		req, err := BuildEligibilityRequest(vendorapi.Eligibility{
			PatientID:       "p123",
			MemberID:        "MBR-999",
			PayerID:         "payer1",
			PayerIdentifier: "87726",
			ProviderID:      "dr456",
		}, mytime.ExampleTime)
		assert.NoError(t, err)

		assert.Equal(t, "CoverageEligibilityRequest", req.ResourceType)
		assert.Equal(t, []string{"validation"}, req.Purpose)
		assert.Equal(t, "MB", req.Patient.Identifier.Type.Coding[0].Code)
		assert.Equal(t, "MBR-999", req.Patient.Identifier.Value)
		assert.Equal(t, "2025-03-31", req.ServicedDate)
	})

	t.Run("Missing member id", func(t *testing.T) {
		_, err := BuildEligibilityRequest(vendorapi.Eligibility{PatientID: "p123"}, mytime.ExampleTime)
		assert.True(t, myerrors.IsPayloadValidationError(err))
	})
}
