package myerrors

import (
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindConfiguration     Kind = "not_configured"
	KindCSRF              Kind = "invalid_state"
	KindAuthentication    Kind = "authentication_failed"
	KindVendor            Kind = "vendor_error"
	KindTimeout           Kind = "timeout"
	KindPayloadValidation Kind = "invalid_payload"
	KindNotFound          Kind = "not_found"
	KindInternal          Kind = "internal"
	KindNotImplemented    Kind = "not_implemented"
)

type httpErrorCoder interface {
	error
	GetHTTPErrorCode() int
	GetKind() Kind
}

type httpError struct {
	httpCode int
	kind     Kind
	err      error

	// vendorPayload holds the verbatim vendor response body, if any
	vendorPayload []byte
}

func (e httpError) Error() string {
	return fmt.Sprintf("status: %d, err: %s", e.httpCode, e.err.Error())
}

func (e httpError) Unwrap() error {
	return e.err
}

func (e httpError) GetHTTPErrorCode() int {
	return e.httpCode
}

func (e httpError) GetKind() Kind {
	return e.kind
}

func newError(httpCode int, kind Kind, err error) *httpError {
	return &httpError{
		httpCode: httpCode,
		kind:     kind,
		err:      err,
	}
}

func NewInvalidInputError(err error) *httpError {
	return newError(http.StatusBadRequest, KindInvalidInput, err)
}

func NewInvalidInputErrorf(format string, args ...interface{}) *httpError {
	return NewInvalidInputError(fmt.Errorf(format, args...))
}

// NewConfigurationError indicates the integration is disabled or misses
// credentials. Never retried.
func NewConfigurationError(err error) *httpError {
	return newError(http.StatusBadRequest, KindConfiguration, err)
}

// NewCSRFError indicates a missing, expired or mismatched oauth state token.
// Forces a fresh initiate.
func NewCSRFError(err error) *httpError {
	return newError(http.StatusForbidden, KindCSRF, err)
}

func NewAuthenticationError(err error) *httpError {
	return newError(http.StatusUnauthorized, KindAuthentication, err)
}

// NewVendorError wraps a non-2xx vendor response. The vendor body is carried
// verbatim so upstream business logic can interpret vendor-specific codes.
func NewVendorError(err error, vendorPayload []byte) *httpError {
	e := newError(http.StatusBadGateway, KindVendor, err)
	e.vendorPayload = vendorPayload
	return e
}

func NewTimeoutError(err error) *httpError {
	return newError(http.StatusGatewayTimeout, KindTimeout, err)
}

func NewPayloadValidationError(err error) *httpError {
	return newError(http.StatusBadRequest, KindPayloadValidation, err)
}

func NewNotFoundError(err error) *httpError {
	return newError(http.StatusNotFound, KindNotFound, err)
}

func NewInternalError(err error) *httpError {
	return newError(http.StatusInternalServerError, KindInternal, err)
}

func NewNotImplementedError(err error) *httpError {
	return newError(http.StatusNotImplemented, KindNotImplemented, err)
}

func GetHTTPStatus(err error) int {
	if err != nil {
		myError, ok := err.(httpErrorCoder)
		if ok {
			return myError.GetHTTPErrorCode()
		}
	}
	return http.StatusInternalServerError
}

// GetKind returns the error classification, or KindInternal for plain errors.
func GetKind(err error) Kind {
	if err != nil {
		myError, ok := err.(httpErrorCoder)
		if ok {
			return myError.GetKind()
		}
	}
	return KindInternal
}

// GetVendorPayload returns the verbatim vendor response carried by a
// vendor-error, or nil.
func GetVendorPayload(err error) []byte {
	if err != nil {
		myError, ok := err.(*httpError)
		if ok {
			return myError.vendorPayload
		}
	}
	return nil
}

func IsConfigurationError(err error) bool {
	return GetKind(err) == KindConfiguration
}

func IsCSRFError(err error) bool {
	return GetKind(err) == KindCSRF
}

func IsAuthenticationError(err error) bool {
	return GetKind(err) == KindAuthentication
}

func IsVendorError(err error) bool {
	return GetKind(err) == KindVendor
}

func IsTimeoutError(err error) bool {
	return GetKind(err) == KindTimeout
}

func IsPayloadValidationError(err error) bool {
	return GetKind(err) == KindPayloadValidation
}

func IsNotFoundError(err error) bool {
	return GetKind(err) == KindNotFound
}
