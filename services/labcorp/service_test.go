package labcorp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/services/credentials"
	"github.com/carevista/practicebackend/services/vendorapi"
)

func enabledCredential(baseURL string) credentials.ProviderCredential {
	return credentials.ProviderCredential{
		ProviderKey:  vendorapi.VendorLabcorp,
		ClientID:     "client123",
		ClientSecret: "secret456",
		IsEnabled:    true,
		Settings: map[string]string{
			credentials.SettingBaseURL:       baseURL,
			credentials.SettingAccountNumber: "ACC-1",
			credentials.SettingFacilityID:    "FAC-1",
		},
	}
}

func exampleOrder() vendorapi.LabOrder {
	return vendorapi.LabOrder{
		PatientID:   "p123",
		PatientName: "Jane Smith",
		ProviderID:  "dr456",
		TestCodes:   []vendorapi.TestCode{{Code: "58410-2", Display: "CBC panel"}},
	}
}

func newVendorServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "grant_type=client_credentials&scope=api", readBody(r))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"labtoken","expires_in":3600}`))
	})
	mux.HandleFunc("/", handler)
	return httptest.NewServer(mux)
}

func readBody(r *http.Request) string {
	buf, _ := io.ReadAll(r.Body)
	return string(buf)
}

func TestLabcorpService(t *testing.T) {
	c := context.TODO()

	t.Run("Disabled adapter returns failure and issues zero http requests", func(t *testing.T) {
		var requests int32
		ts := newVendorServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requests, 1)
		})
		defer ts.Close()

		cred := enabledCredential(ts.URL)
		cred.IsEnabled = false
		sut := New(cred, mytime.RealNower{})

		result := sut.SubmitOrder(c, exampleOrder())
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "not enabled")
		assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
	})

	t.Run("Missing credentials short-circuit", func(t *testing.T) {
		cred := enabledCredential("http://localhost:1")
		cred.ClientSecret = ""
		sut := New(cred, mytime.RealNower{})

		result := sut.TestConnection(c)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "not configured")
	})

	t.Run("Submit order sends a service request and extracts the order id", func(t *testing.T) {
		ts := newVendorServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/orders", r.URL.Path)
			assert.Equal(t, "Bearer labtoken", r.Header.Get("Authorization"))

			payload := map[string]any{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "ServiceRequest", payload["resourceType"])
			insurance := payload["insurance"].(map[string]any)
			assert.Equal(t, "ACC-1", insurance["accountNumber"])

			_, _ = w.Write([]byte(`{"orderId":"LC-42","status":"received"}`))
		})
		defer ts.Close()

		sut := New(enabledCredential(ts.URL), mytime.RealNower{})

		result := sut.SubmitOrder(c, exampleOrder())
		assert.True(t, result.Success)
		assert.Equal(t, "submitted", result.Status)
		assert.Equal(t, "LC-42", result.VendorID)
	})

	t.Run("Accession number fallback", func(t *testing.T) {
		ts := newVendorServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"accessionNumber":"ACSN-7"}`))
		})
		defer ts.Close()

		sut := New(enabledCredential(ts.URL), mytime.RealNower{})

		result := sut.SubmitOrder(c, exampleOrder())
		assert.True(t, result.Success)
		assert.Equal(t, "ACSN-7", result.VendorID)
	})

	t.Run("Invalid order is rejected before any http call", func(t *testing.T) {
		var requests int32
		ts := newVendorServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requests, 1)
		})
		defer ts.Close()

		sut := New(enabledCredential(ts.URL), mytime.RealNower{})

		result := sut.SubmitOrder(c, vendorapi.LabOrder{PatientID: "p123"})
		assert.False(t, result.Success)
		assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
	})

	t.Run("Vendor error body is passed through verbatim", func(t *testing.T) {
		ts := newVendorServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(422)
			_, _ = w.Write([]byte(`{"issue":"unknown test code"}`))
		})
		defer ts.Close()

		sut := New(enabledCredential(ts.URL), mytime.RealNower{})

		result := sut.SubmitOrder(c, exampleOrder())
		assert.False(t, result.Success)
		assert.Equal(t, "failed", result.Status)
		assert.Equal(t, `{"issue":"unknown test code"}`, string(result.Response))
	})

	t.Run("Order status and results", func(t *testing.T) {
		ts := newVendorServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/orders/LC-42":
				_, _ = w.Write([]byte(`{"status":"in_progress"}`))
			case "/v1/orders/LC-42/results":
				_, _ = w.Write([]byte(`{"results":[{"code":"58410-2","value":"normal"}]}`))
			default:
				w.WriteHeader(404)
			}
		})
		defer ts.Close()

		sut := New(enabledCredential(ts.URL), mytime.RealNower{})

		status := sut.GetOrderStatus(c, "LC-42")
		assert.True(t, status.Success)
		assert.Equal(t, "in_progress", status.Status)

		results := sut.GetResults(c, "LC-42")
		assert.True(t, results.Success)
		assert.Contains(t, string(results.Response), "58410-2")
	})

	t.Run("Cancel defaults the reason", func(t *testing.T) {
		ts := newVendorServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/orders/LC-42/cancel", r.URL.Path)
			payload := map[string]string{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "Requested by provider", payload["reason"])
			_, _ = w.Write([]byte(`{}`))
		})
		defer ts.Close()

		sut := New(enabledCredential(ts.URL), mytime.RealNower{})

		result := sut.CancelOrder(c, "LC-42", vendorapi.Cancellation{})
		assert.True(t, result.Success)
		assert.Equal(t, "cancelled", result.Status)
	})

	t.Run("Test search and details", func(t *testing.T) {
		ts := newVendorServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/tests/search":
				assert.Equal(t, "cbc", r.URL.Query().Get("query"))
				_, _ = w.Write([]byte(`{"tests":[]}`))
			case "/v1/tests/58410-2":
				assert.Equal(t, "loinc", r.URL.Query().Get("codeType"))
				_, _ = w.Write([]byte(`{"code":"58410-2"}`))
			default:
				w.WriteHeader(404)
			}
		})
		defer ts.Close()

		sut := New(enabledCredential(ts.URL), mytime.RealNower{})

		search := sut.SearchTests(c, vendorapi.SearchParams{"query": "cbc"})
		assert.True(t, search.Success)

		details := sut.GetTestDetails(c, "58410-2", "loinc")
		assert.True(t, details.Success)
		assert.Equal(t, "58410-2", details.VendorID)
	})

	t.Run("IsConfigured follows credential state", func(t *testing.T) {
		assert.True(t, New(enabledCredential("http://x"), mytime.RealNower{}).IsConfigured())

		disabled := enabledCredential("http://x")
		disabled.IsEnabled = false
		assert.False(t, New(disabled, mytime.RealNower{}).IsConfigured())
	})
}
