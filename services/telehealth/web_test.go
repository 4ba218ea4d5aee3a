package telehealth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/lib/myvault"
	"github.com/carevista/practicebackend/services/credentials"
)

func setupWeb(t *testing.T) (context.Context, *mux.Router, myvault.VaultReadWriter[credentials.ProviderCredential]) {
	t.Helper()
	c := context.TODO()

	vault, cleanup, err := myvault.New[credentials.ProviderCredential](c)
	assert.NoError(t, err)
	t.Cleanup(cleanup)

	router := mux.NewRouter()
	NewService(vault, mytime.RealNower{}).RegisterEndpoints(c, router)

	return c, router, vault
}

func TestWeb(t *testing.T) {

	t.Run("Create meeting", func(t *testing.T) {
		c, router, vault := setupWeb(t)

		zoomBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/users/me/meetings", r.URL.Path)
			assert.Equal(t, "Bearer stored-oauth-token", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":987654321,"join_url":"https://zoom.us/j/987654321","start_url":"https://zoom.us/s/987654321","password":"pw123"}`))
		}))
		defer zoomBackend.Close()

		assert.NoError(t, vault.Put(c, "zoom", oauthCredential(zoomBackend.URL)))

		request, _ := http.NewRequest(http.MethodPost, "/api/integrations/telehealth/zoom/meetings",
			strings.NewReader(`{"patientName":"Jane Smith","durationMinutes":45,"recordingEnabled":true}`))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 200, response.Code)
		meeting := Meeting{}
		assert.NoError(t, json.Unmarshal(response.Body.Bytes(), &meeting))
		assert.Equal(t, "987654321", meeting.MeetingID)
		assert.Equal(t, "https://zoom.us/j/987654321", meeting.JoinURL)
		assert.Equal(t, "zoom", meeting.Provider)
	})

	t.Run("Create meeting without stored zoom credential", func(t *testing.T) {
		_, router, _ := setupWeb(t)

		request, _ := http.NewRequest(http.MethodPost, "/api/integrations/telehealth/zoom/meetings",
			strings.NewReader(`{"patientName":"Jane Smith"}`))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 400, response.Code)
		assert.Contains(t, response.Body.String(), "not configured")
	})

	t.Run("Create meeting with malformed body", func(t *testing.T) {
		c, router, vault := setupWeb(t)
		assert.NoError(t, vault.Put(c, "zoom", oauthCredential("")))

		request, _ := http.NewRequest(http.MethodPost, "/api/integrations/telehealth/zoom/meetings",
			strings.NewReader(`{"patientName":`))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 400, response.Code)
	})

	t.Run("Delete meeting", func(t *testing.T) {
		c, router, vault := setupWeb(t)

		zoomBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/meetings/987654321", r.URL.Path)
			w.Write([]byte(`{}`))
		}))
		defer zoomBackend.Close()

		assert.NoError(t, vault.Put(c, "zoom", oauthCredential(zoomBackend.URL)))

		request, _ := http.NewRequest(http.MethodDelete, "/api/integrations/telehealth/zoom/meetings/987654321", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), "deleted")
	})

	t.Run("Recordings passthrough", func(t *testing.T) {
		c, router, vault := setupWeb(t)

		zoomBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/meetings/987654321/recordings", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"recording_files":[{"file_type":"MP4"}]}`))
		}))
		defer zoomBackend.Close()

		assert.NoError(t, vault.Put(c, "zoom", oauthCredential(zoomBackend.URL)))

		request, _ := http.NewRequest(http.MethodGet, "/api/integrations/telehealth/zoom/meetings/987654321/recordings", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), "MP4")
	})
}
