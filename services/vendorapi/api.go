package vendorapi

import "context"

type Vendor interface {
	Key() string
	IsConfigured() bool
	TestConnection(c context.Context) Result
}

type LabVendor interface {
	Vendor
	SubmitOrder(c context.Context, order LabOrder) Result
	GetOrderStatus(c context.Context, vendorOrderID string) Result
	GetResults(c context.Context, vendorOrderID string) Result
	CancelOrder(c context.Context, vendorOrderID string, details Cancellation) Result
	SearchTests(c context.Context, params SearchParams) Result
	GetTestDetails(c context.Context, testCode string, codeType string) Result
}

type ClaimsVendor interface {
	Vendor
	SubmitClaim(c context.Context, claim Claim) Result
	GetClaimStatus(c context.Context, vendorClaimID string) Result
	GetRemittance(c context.Context, vendorClaimID string) Result
	VerifyEligibility(c context.Context, req Eligibility) Result
	VoidClaim(c context.Context, vendorClaimID string, details Cancellation) Result
}

type PrescriptionVendor interface {
	Vendor
	SendPrescription(c context.Context, prescription Prescription) Result
	GetPrescriptionStatus(c context.Context, vendorPrescriptionID string) Result
	CancelPrescription(c context.Context, vendorPrescriptionID string, details Cancellation) Result
	SearchPharmacies(c context.Context, params SearchParams) Result
}
