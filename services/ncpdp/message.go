// Package ncpdp renders prescriptions as NCPDP SCRIPT v10.6 release 006
// XML messages, the wire format the e-prescribing network accepts.
package ncpdp

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/services/vendorapi"
)

const (
	scriptVersion = "10.6"
	scriptRelease = "006"

	productCodeQualifierNDC = "ND"

	defaultQuantityUnit       = "tablets"
	defaultDaysSupply         = 30
	defaultCancellationReason = "Requested by prescriber"
)

type Message struct {
	XMLName xml.Name `xml:"Message"`
	Version string   `xml:"version,attr"`
	Release string   `xml:"release,attr"`
	Header  Header   `xml:"Header"`
	Body    Body     `xml:"Body"`
}

// Header routes the message: To is the pharmacy NCPDP id, From is the
// prescriber system's SPI.
type Header struct {
	To        string `xml:"To"`
	From      string `xml:"From"`
	MessageID string `xml:"MessageID"`
	SentTime  string `xml:"SentTime"`
}

// Body carries exactly one message variant, the nil ones are omitted.
type Body struct {
	NewRx    *NewRx    `xml:"NewRx,omitempty"`
	CancelRx *CancelRx `xml:"CancelRx,omitempty"`
}

type NewRx struct {
	Patient    Patient    `xml:"Patient"`
	Prescriber Prescriber `xml:"Prescriber"`
	Medication Medication `xml:"Medication"`
	Pharmacy   Pharmacy   `xml:"Pharmacy"`
}

type Patient struct {
	Identification PatientIdentification `xml:"Identification"`
	Name           Name                  `xml:"Name"`
	DateOfBirth    string                `xml:"DateOfBirth"`
	Gender         string                `xml:"Gender"`
}

type PatientIdentification struct {
	PatientID string `xml:"PatientID"`
}

type Name struct {
	LastName  string `xml:"LastName"`
	FirstName string `xml:"FirstName"`
}

type Prescriber struct {
	Identification PrescriberIdentification `xml:"Identification"`
	Name           Name                     `xml:"Name"`
}

type PrescriberIdentification struct {
	NPI string `xml:"NPI"`
	DEA string `xml:"DEA"`
}

type Medication struct {
	DrugDescription string    `xml:"DrugDescription"`
	DrugCoded       DrugCoded `xml:"DrugCoded"`
	Quantity        Quantity  `xml:"Quantity"`
	DaysSupply      int       `xml:"DaysSupply"`
	Substitutions   string    `xml:"Substitutions"`
	Directions      string    `xml:"Directions"`
	Refills         Refills   `xml:"Refills"`
}

type DrugCoded struct {
	ProductCode          string `xml:"ProductCode"`
	ProductCodeQualifier string `xml:"ProductCodeQualifier"`
}

type Quantity struct {
	Value string `xml:"Value"`
	Unit  string `xml:"Unit"`
}

type Refills struct {
	Quantity int `xml:"Quantity"`
}

type Pharmacy struct {
	Identification PharmacyIdentification `xml:"Identification"`
}

type PharmacyIdentification struct {
	NCPDP string `xml:"NCPDP"`
}

type CancelRx struct {
	PrescriptionReferenceNumber string `xml:"PrescriptionReferenceNumber"`
	CancellationReason          string `xml:"CancellationReason"`
}

// BuildNewRx maps a prescription onto a NewRx message. Quantity unit and
// days supply get the customary defaults when absent.
func BuildNewRx(prescription vendorapi.Prescription, spi string, messageID string, now time.Time) (Message, error) {
	if prescription.PatientID == "" {
		return Message{}, myerrors.NewPayloadValidationError(fmt.Errorf("prescription is missing a patient"))
	}
	if prescription.MedicationName == "" {
		return Message{}, myerrors.NewPayloadValidationError(fmt.Errorf("prescription is missing a medication"))
	}
	if prescription.PharmacyNCPDPID == "" {
		return Message{}, myerrors.NewPayloadValidationError(fmt.Errorf("prescription is missing a destination pharmacy"))
	}

	quantityUnit := prescription.QuantityUnit
	if quantityUnit == "" {
		quantityUnit = defaultQuantityUnit
	}
	daysSupply := prescription.DaysSupply
	if daysSupply == 0 {
		daysSupply = defaultDaysSupply
	}
	substitutions := "0"
	if prescription.AllowSubstitutions {
		substitutions = "1"
	}

	return Message{
		Version: scriptVersion,
		Release: scriptRelease,
		Header:  newHeader(prescription.PharmacyNCPDPID, spi, messageID, now),
		Body: Body{
			NewRx: &NewRx{
				Patient: Patient{
					Identification: PatientIdentification{PatientID: prescription.PatientID},
					Name: Name{
						LastName:  prescription.PatientLastName,
						FirstName: prescription.PatientFirstName,
					},
					DateOfBirth: prescription.PatientDateOfBirth,
					Gender:      prescription.PatientGender,
				},
				Prescriber: Prescriber{
					Identification: PrescriberIdentification{
						NPI: prescription.PrescriberNPI,
						DEA: prescription.PrescriberDEA,
					},
					Name: Name{
						LastName:  prescription.PrescriberLastName,
						FirstName: prescription.PrescriberFirstName,
					},
				},
				Medication: Medication{
					DrugDescription: prescription.MedicationName,
					DrugCoded: DrugCoded{
						ProductCode:          prescription.NDCCode,
						ProductCodeQualifier: productCodeQualifierNDC,
					},
					Quantity: Quantity{
						Value: prescription.Quantity,
						Unit:  quantityUnit,
					},
					DaysSupply:    daysSupply,
					Substitutions: substitutions,
					Directions:    prescription.Instructions,
					Refills:       Refills{Quantity: prescription.Refills},
				},
				Pharmacy: Pharmacy{
					Identification: PharmacyIdentification{NCPDP: prescription.PharmacyNCPDPID},
				},
			},
		},
	}, nil
}

// BuildCancelRx maps a cancellation onto a CancelRx message.
func BuildCancelRx(prescriptionReferenceNumber string, details vendorapi.Cancellation, pharmacyNCPDPID string, spi string, messageID string, now time.Time) (Message, error) {
	if prescriptionReferenceNumber == "" {
		return Message{}, myerrors.NewPayloadValidationError(fmt.Errorf("cancellation is missing a prescription reference"))
	}

	reason := details.Reason
	if reason == "" {
		reason = defaultCancellationReason
	}

	return Message{
		Version: scriptVersion,
		Release: scriptRelease,
		Header:  newHeader(pharmacyNCPDPID, spi, messageID, now),
		Body: Body{
			CancelRx: &CancelRx{
				PrescriptionReferenceNumber: prescriptionReferenceNumber,
				CancellationReason:          reason,
			},
		},
	}, nil
}

func newHeader(to string, from string, messageID string, now time.Time) Header {
	return Header{
		To:        to,
		From:      from,
		MessageID: messageID,
		SentTime:  now.UTC().Format(time.RFC3339),
	}
}

// Marshal renders the message with the XML declaration the network expects.
func Marshal(message Message) ([]byte, error) {
	body, err := xml.MarshalIndent(message, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshalling ncpdp message: %s", err)
	}
	return append([]byte(xml.Header), body...), nil
}
