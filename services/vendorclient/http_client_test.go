package vendorclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carevista/practicebackend/lib/myerrors"
)

func TestClient(t *testing.T) {
	c := context.TODO()

	t.Run("Bearer token and query params end up on the wire", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer mytoken", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "cbc", r.URL.Query().Get("query"))
			_, _ = w.Write([]byte(`{"tests":[]}`))
		}))
		defer ts.Close()

		sut := New(ts.URL, StaticTokenAuthorizer{Token: "mytoken"})

		status, body, err := sut.Execute(c, http.MethodGet, "/v1/tests/search", "", nil,
			url.Values{"query": []string{"cbc"}})
		assert.NoError(t, err)
		assert.Equal(t, 200, status)
		assert.Equal(t, `{"tests":[]}`, string(body))
	})

	t.Run("Non-2xx response becomes a vendor error carrying the body verbatim", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(422)
			_, _ = w.Write([]byte(`{"issue":[{"severity":"error","diagnostics":"missing subject"}]}`))
		}))
		defer ts.Close()

		sut := New(ts.URL, StaticTokenAuthorizer{Token: "mytoken"})

		status, body, err := sut.Execute(c, http.MethodPost, "/v1/orders", ContentTypeJSON, []byte(`{}`), nil)
		assert.Error(t, err)
		assert.True(t, myerrors.IsVendorError(err))
		assert.Equal(t, 422, status)
		assert.Equal(t, `{"issue":[{"severity":"error","diagnostics":"missing subject"}]}`, string(body))
		assert.Equal(t, `{"issue":[{"severity":"error","diagnostics":"missing subject"}]}`, string(myerrors.GetVendorPayload(err)))
	})

	t.Run("Authorizer failure short-circuits before any network call", func(t *testing.T) {
		called := false
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer ts.Close()

		sut := New(ts.URL, StaticTokenAuthorizer{})

		_, _, err := sut.Execute(c, http.MethodGet, "/v1/health", "", nil, nil)
		assert.Error(t, err)
		assert.True(t, myerrors.IsConfigurationError(err))
		assert.False(t, called)
	})

	t.Run("XML content type is passed through", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
			_, _ = w.Write([]byte(`{"status":"sent"}`))
		}))
		defer ts.Close()

		sut := New(ts.URL, StaticTokenAuthorizer{Token: "mytoken"})

		_, _, err := sut.Execute(c, http.MethodPost, "/v1/prescriptions", ContentTypeXML, []byte(`<Message/>`), nil)
		assert.NoError(t, err)
	})
}
