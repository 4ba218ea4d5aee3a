package myerrors

import (
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	myErr := fmt.Errorf("my error")

	testCases := []struct {
		name       string
		in         error
		httpStatus int
		kind       Kind
		errorText  string
	}{
		{
			name:       "No http error",
			in:         myErr,
			httpStatus: 500,
			kind:       KindInternal,
			errorText:  "my error",
		},
		{
			name:       "Invalid input error",
			in:         NewInvalidInputError(myErr),
			httpStatus: 400,
			kind:       KindInvalidInput,
			errorText:  "status: 400, err: my error",
		},
		{
			name:       "Invalid input errorf",
			in:         NewInvalidInputErrorf("%s: %d", myErr.Error(), 123),
			httpStatus: 400,
			kind:       KindInvalidInput,
			errorText:  "status: 400, err: my error: 123",
		},
		{
			name:       "Configuration error",
			in:         NewConfigurationError(myErr),
			httpStatus: 400,
			kind:       KindConfiguration,
			errorText:  "status: 400, err: my error",
		},
		{
			name:       "CSRF error",
			in:         NewCSRFError(myErr),
			httpStatus: 403,
			kind:       KindCSRF,
			errorText:  "status: 403, err: my error",
		},
		{
			name:       "Authentication error",
			in:         NewAuthenticationError(myErr),
			httpStatus: 401,
			kind:       KindAuthentication,
			errorText:  "status: 401, err: my error",
		},
		{
			name:       "Vendor error",
			in:         NewVendorError(myErr, []byte(`{"code":"REJECTED"}`)),
			httpStatus: 502,
			kind:       KindVendor,
			errorText:  "status: 502, err: my error",
		},
		{
			name:       "Timeout error",
			in:         NewTimeoutError(myErr),
			httpStatus: 504,
			kind:       KindTimeout,
			errorText:  "status: 504, err: my error",
		},
		{
			name:       "Payload validation error",
			in:         NewPayloadValidationError(myErr),
			httpStatus: 400,
			kind:       KindPayloadValidation,
			errorText:  "status: 400, err: my error",
		},
		{
			name:       "Not found error",
			in:         NewNotFoundError(myErr),
			httpStatus: 404,
			kind:       KindNotFound,
			errorText:  "status: 404, err: my error",
		},
		{
			name:       "Internal error",
			in:         NewInternalError(myErr),
			httpStatus: 500,
			kind:       KindInternal,
			errorText:  "status: 500, err: my error",
		},
		{
			name:       "Not implemented error",
			in:         NewNotImplementedError(myErr),
			httpStatus: 501,
			kind:       KindNotImplemented,
			errorText:  "status: 501, err: my error",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			httpStatus := GetHTTPStatus(tc.in)
			if httpStatus != tc.httpStatus {
				t.Errorf("HttpStatus: got %v, want %v", httpStatus, tc.httpStatus)
			}
			if GetKind(tc.in) != tc.kind {
				t.Errorf("Kind: got %v, want %v", GetKind(tc.in), tc.kind)
			}
			if tc.errorText != tc.in.Error() {
				t.Errorf("%s: ErrorText: got %v, want %v", tc.name, tc.in.Error(), tc.errorText)
			}
		})
	}
}

func TestVendorPayload(t *testing.T) {
	err := NewVendorError(fmt.Errorf("claim rejected"), []byte(`{"code":"A7"}`))
	if string(GetVendorPayload(err)) != `{"code":"A7"}` {
		t.Errorf("VendorPayload: got %s", GetVendorPayload(err))
	}
	if GetVendorPayload(fmt.Errorf("plain")) != nil {
		t.Errorf("VendorPayload on plain error should be nil")
	}
}
