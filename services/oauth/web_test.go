package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/carevista/practicebackend/lib/mypublisher"
	"github.com/carevista/practicebackend/lib/myqueue"
	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/lib/myvault"
	"github.com/carevista/practicebackend/services/credentials"
	"github.com/carevista/practicebackend/services/oauth/oauthevents"
	"github.com/carevista/practicebackend/services/oauth/providers"
	"github.com/carevista/practicebackend/services/oauth/statestore"
	"github.com/carevista/practicebackend/services/oauth/tokenclient"
)

const (
	zoomScope = "meeting:write meeting:read user:read"
)

func TestOAuthFlow(t *testing.T) {

	t.Run("Initiate composes auth url and stores state", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, vault, states, tokener, oauthClient, nower, _, publisher := setup(t, ctrl)

		storeCredential(t, ctx, vault, credentials.ProviderCredential{
			ProviderKey:  "zoom",
			ClientID:     "zoom_client",
			ClientSecret: "zoom_secret",
		})

		nower.EXPECT().Now().Return(mytime.ExampleTime)
		tokener.EXPECT().Create().Return("statetoken123", nil)
		oauthClient.EXPECT().ComposeAuthURL(gomock.Any(), tokenclient.ComposeAuthURLRequest{
			ProviderKey: "zoom",
			ClientID:    "zoom_client",
			RedirectURI: "http://localhost:8888/api/integrations/oauth/zoom/callback",
			Scope:       zoomScope,
			State:       "statetoken123",
		}).Return("https://zoom.us/oauth/authorize?state=statetoken123", nil)
		publisher.EXPECT().Publish(gomock.Any(), oauthevents.TopicName, oauthevents.OAuthSetupStarted{
			ProviderKey: "zoom",
			ClientID:    "zoom_client",
			State:       "statetoken123",
		}).Return(nil)

		request, err := http.NewRequest(http.MethodGet, "/api/integrations/oauth/zoom/initiate", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), `"authUrl": "https://zoom.us/oauth/authorize?state=statetoken123"`)
		assert.Contains(t, response.Body.String(), `"state": "statetoken123"`)

		state, found, err := states.Consume(ctx, "statetoken123")
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "zoom", state.ProviderKey)
		assert.Equal(t, mytime.ExampleTime.Add(10*time.Minute), state.ExpiresAt)
	})

	t.Run("Initiate without client-id fails and creates no state", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, _, states, _, _, nower, _, _ := setup(t, ctrl)

		nower.EXPECT().Now().Return(mytime.ExampleTime)

		request, err := http.NewRequest(http.MethodGet, "/api/integrations/oauth/zoom/initiate", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 400, response.Code)
		assert.Contains(t, response.Body.String(), "not_configured")

		// no state was left behind
		swept, err := states.SweepExpired(ctx, mytime.ExampleTime.Add(24*time.Hour))
		assert.NoError(t, err)
		assert.Equal(t, 0, swept)
	})

	t.Run("Initiate for api-key vendor is refused", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, router, _, _, _, _, nower, _, _ := setup(t, ctrl)

		nower.EXPECT().Now().Return(mytime.ExampleTime)

		request, err := http.NewRequest(http.MethodGet, "/api/integrations/oauth/labcorp/initiate", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 400, response.Code)
		assert.Contains(t, response.Body.String(), "api-key")
	})

	t.Run("Callback exchanges code and stores tokens", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, vault, states, _, oauthClient, nower, queue, publisher := setup(t, ctrl)

		storeCredential(t, ctx, vault, credentials.ProviderCredential{
			ProviderKey:  "zoom",
			ClientID:     "zoom_client",
			ClientSecret: "zoom_secret",
			IsEnabled:    true,
		})
		addState(t, ctx, states, "statetoken123", "zoom", mytime.ExampleTime)

		nower.EXPECT().Now().Return(mytime.ExampleTime)
		oauthClient.EXPECT().ExchangeCode(gomock.Any(), tokenclient.ExchangeCodeRequest{
			ProviderKey:  "zoom",
			ClientID:     "zoom_client",
			ClientSecret: "zoom_secret",
			RedirectURI:  "http://localhost:8888/api/integrations/oauth/zoom/callback",
			Code:         "789",
		}).Return(tokenclient.TokenResponse{
			TokenType:    "bearer",
			ExpiresIn:    3600,
			AccessToken:  "at123",
			Scope:        zoomScope,
			RefreshToken: "rt456",
		}, nil)
		publisher.EXPECT().Publish(gomock.Any(), oauthevents.TopicName, oauthevents.OAuthSetupCompleted{
			ProviderKey: "zoom",
			ClientID:    "zoom_client",
			Scope:       zoomScope,
		}).Return(nil)
		queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, task myqueue.Task) error {
				assert.Equal(t, "/api/integrations/oauth/zoom/refresh", task.WebhookURLPath)
				assert.Equal(t, mytime.ExampleTime.Add(time.Hour).Add(-5*time.Minute), task.NotBefore)
				return nil
			})

		request, err := http.NewRequest(http.MethodGet, "/api/integrations/oauth/zoom/callback?code=789&state=statetoken123", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 303, response.Code)
		assert.Equal(t, "/admin?success=oauth_configured&provider=zoom", response.Header().Get("Location"))

		cred, exists, err := vault.Get(ctx, "zoom")
		assert.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, "at123", cred.AccessToken())
		assert.Equal(t, "rt456", cred.RefreshToken())
		assert.Equal(t, zoomScope, cred.Setting(credentials.SettingScope))
		expiresAt, known := cred.ExpiresAt()
		assert.True(t, known)
		assert.True(t, expiresAt.Equal(mytime.ExampleTime.Add(time.Hour)))
	})

	t.Run("Callback with unknown state redirects with invalid_state", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, router, _, _, _, _, nower, _, _ := setup(t, ctrl)

		nower.EXPECT().Now().Return(mytime.ExampleTime)

		request, err := http.NewRequest(http.MethodGet, "/api/integrations/oauth/zoom/callback?code=789&state=neverissued", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 303, response.Code)
		assert.Equal(t, "/admin?error=invalid_state&provider=zoom", response.Header().Get("Location"))
	})

	t.Run("State token is single-use", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, vault, states, _, oauthClient, nower, queue, publisher := setup(t, ctrl)

		storeCredential(t, ctx, vault, credentials.ProviderCredential{
			ProviderKey:  "zoom",
			ClientID:     "zoom_client",
			ClientSecret: "zoom_secret",
		})
		addState(t, ctx, states, "once", "zoom", mytime.ExampleTime)

		nower.EXPECT().Now().Return(mytime.ExampleTime).Times(2)
		oauthClient.EXPECT().ExchangeCode(gomock.Any(), gomock.Any()).Return(tokenclient.TokenResponse{
			AccessToken: "at123",
			Scope:       zoomScope,
		}, nil)
		publisher.EXPECT().Publish(gomock.Any(), oauthevents.TopicName, gomock.Any()).Return(nil)
		queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

		request, err := http.NewRequest(http.MethodGet, "/api/integrations/oauth/zoom/callback?code=789&state=once", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)
		assert.Equal(t, 303, response.Code)
		assert.Equal(t, "/admin?success=oauth_configured&provider=zoom", response.Header().Get("Location"))

		// replay of the exact same callback must be rejected
		response = httptest.NewRecorder()
		router.ServeHTTP(response, request)
		assert.Equal(t, 303, response.Code)
		assert.Equal(t, "/admin?error=invalid_state&provider=zoom", response.Header().Get("Location"))
	})

	t.Run("Expired state is rejected and consumed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, vault, states, _, _, nower, _, _ := setup(t, ctrl)

		storeCredential(t, ctx, vault, credentials.ProviderCredential{
			ProviderKey: "zoom",
			ClientID:    "zoom_client",
		})
		addState(t, ctx, states, "stale", "zoom", mytime.ExampleTime.Add(-11*time.Minute))

		nower.EXPECT().Now().Return(mytime.ExampleTime)

		request, err := http.NewRequest(http.MethodGet, "/api/integrations/oauth/zoom/callback?code=789&state=stale", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 303, response.Code)
		assert.Equal(t, "/admin?error=invalid_state&provider=zoom", response.Header().Get("Location"))
	})

	t.Run("Callback without code or state redirects with invalid_callback", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, router, _, _, _, _, _, _, _ := setup(t, ctrl)

		request, err := http.NewRequest(http.MethodGet, "/api/integrations/oauth/zoom/callback?code=789", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 303, response.Code)
		assert.Equal(t, "/admin?error=invalid_callback&provider=zoom", response.Header().Get("Location"))
	})

	t.Run("Provider-reported error is passed through to admin", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, router, _, _, _, _, _, _, _ := setup(t, ctrl)

		request, err := http.NewRequest(http.MethodGet, "/api/integrations/oauth/zoom/callback?error=access_denied", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 303, response.Code)
		assert.Equal(t, "/admin?error=access_denied&provider=zoom", response.Header().Get("Location"))
	})

	t.Run("Refresh failure leaves stored tokens unchanged", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, vault, _, _, oauthClient, nower, _, _ := setup(t, ctrl)

		originalSettings := map[string]string{
			credentials.SettingAccessToken:  "old_at",
			credentials.SettingRefreshToken: "old_rt",
			credentials.SettingExpiresAt:    "1743465539000",
			credentials.SettingScope:        zoomScope,
		}
		storeCredential(t, ctx, vault, credentials.ProviderCredential{
			ProviderKey:  "zoom",
			ClientID:     "zoom_client",
			ClientSecret: "zoom_secret",
			IsEnabled:    true,
			Settings:     originalSettings,
		})

		nower.EXPECT().Now().Return(mytime.ExampleTime)
		oauthClient.EXPECT().RefreshAccessToken(gomock.Any(), tokenclient.RefreshTokenRequest{
			ProviderKey:  "zoom",
			ClientID:     "zoom_client",
			ClientSecret: "zoom_secret",
			RefreshToken: "old_rt",
		}).Return(tokenclient.TokenResponse{}, assert.AnError)

		request, err := http.NewRequest(http.MethodPost, "/api/integrations/oauth/zoom/refresh", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 500, response.Code)

		cred, _, err := vault.Get(ctx, "zoom")
		assert.NoError(t, err)
		assert.Equal(t, originalSettings, cred.Settings)
	})

	t.Run("Refresh keeps old refresh-token when provider does not rotate it", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, vault, _, _, oauthClient, nower, queue, publisher := setup(t, ctrl)

		storeCredential(t, ctx, vault, credentials.ProviderCredential{
			ProviderKey:  "zoom",
			ClientID:     "zoom_client",
			ClientSecret: "zoom_secret",
			IsEnabled:    true,
			Settings: map[string]string{
				credentials.SettingAccessToken:  "old_at",
				credentials.SettingRefreshToken: "old_rt",
				credentials.SettingScope:        zoomScope,
			},
		})

		nower.EXPECT().Now().Return(mytime.ExampleTime)
		oauthClient.EXPECT().RefreshAccessToken(gomock.Any(), gomock.Any()).Return(tokenclient.TokenResponse{
			TokenType:   "bearer",
			ExpiresIn:   3600,
			AccessToken: "new_at",
		}, nil)
		publisher.EXPECT().Publish(gomock.Any(), oauthevents.TopicName, oauthevents.OAuthTokenRefreshCompleted{
			ProviderKey: "zoom",
			ClientID:    "zoom_client",
		}).Return(nil)
		queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)

		request, err := http.NewRequest(http.MethodPost, "/api/integrations/oauth/zoom/refresh", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 200, response.Code)

		cred, _, err := vault.Get(ctx, "zoom")
		assert.NoError(t, err)
		assert.Equal(t, "new_at", cred.AccessToken())
		assert.Equal(t, "old_rt", cred.RefreshToken())
	})

	t.Run("Refresh without refresh-token fails with configuration error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, vault, _, _, _, nower, _, _ := setup(t, ctrl)

		storeCredential(t, ctx, vault, credentials.ProviderCredential{
			ProviderKey: "zoom",
			ClientID:    "zoom_client",
		})

		nower.EXPECT().Now().Return(mytime.ExampleTime)

		request, err := http.NewRequest(http.MethodPost, "/api/integrations/oauth/zoom/refresh", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 400, response.Code)
		assert.Contains(t, response.Body.String(), "no refresh token available")
	})

	t.Run("Status reflects stored credential", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, vault, _, _, _, _, _, _ := setup(t, ctrl)

		storeCredential(t, ctx, vault, credentials.ProviderCredential{
			ProviderKey: "zoom",
			ClientID:    "zoom_client",
			Settings: map[string]string{
				credentials.SettingAccessToken: "at123",
				credentials.SettingExpiresAt:   "1743465539000",
			},
		})

		request, err := http.NewRequest(http.MethodGet, "/api/integrations/oauth/zoom/status", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 200, response.Code)
		got := response.Body.String()
		assert.Contains(t, got, `"configured": true`)
		assert.Contains(t, got, `"hasClientId": true`)
		assert.Contains(t, got, `"hasTokens": true`)
	})

	t.Run("Status for unknown credential is all false", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, router, _, _, _, _, _, _, _ := setup(t, ctrl)

		request, err := http.NewRequest(http.MethodGet, "/api/integrations/oauth/webex/status", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 200, response.Code)
		got := response.Body.String()
		assert.Contains(t, got, `"configured": false`)
		assert.Contains(t, got, `"hasClientId": false`)
		assert.Contains(t, got, `"hasTokens": false`)
	})

	t.Run("Status for api-key vendor reports auth type", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, router, _, _, _, _, _, _, _ := setup(t, ctrl)

		request, err := http.NewRequest(http.MethodGet, "/api/integrations/oauth/surescripts/status", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), `"authType": "api_key"`)
	})

	t.Run("Save credentials preserves settings and enabled-flag", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, vault, _, _, _, nower, _, _ := setup(t, ctrl)

		storeCredential(t, ctx, vault, credentials.ProviderCredential{
			ProviderKey:  "zoom",
			ClientID:     "old_client",
			ClientSecret: "old_secret",
			IsEnabled:    true,
			Settings: map[string]string{
				credentials.SettingAccessToken: "at123",
			},
		})

		nower.EXPECT().Now().Return(mytime.ExampleTime)

		request, err := http.NewRequest(http.MethodPost, "/api/integrations/oauth/zoom/credentials",
			strings.NewReader(`client_id=new_client&client_secret=new_secret`))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 200, response.Code)

		cred, _, err := vault.Get(ctx, "zoom")
		assert.NoError(t, err)
		assert.Equal(t, "new_client", cred.ClientID)
		assert.Equal(t, "new_secret", cred.ClientSecret)
		assert.True(t, cred.IsEnabled)
		assert.Equal(t, "at123", cred.AccessToken())
	})

	t.Run("Save credentials requires both fields", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, router, _, _, _, _, nower, _, _ := setup(t, ctrl)

		nower.EXPECT().Now().Return(mytime.ExampleTime)

		request, err := http.NewRequest(http.MethodPost, "/api/integrations/oauth/zoom/credentials",
			strings.NewReader(`client_id=new_client`))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 400, response.Code)
	})

	t.Run("Revoke clears tokens but keeps client credentials", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, vault, _, _, _, nower, _, publisher := setup(t, ctrl)

		storeCredential(t, ctx, vault, credentials.ProviderCredential{
			ProviderKey:  "zoom",
			ClientID:     "zoom_client",
			ClientSecret: "zoom_secret",
			IsEnabled:    true,
			Settings: map[string]string{
				credentials.SettingAccessToken:  "at123",
				credentials.SettingRefreshToken: "rt456",
			},
		})

		nower.EXPECT().Now().Return(mytime.ExampleTime)
		publisher.EXPECT().Publish(gomock.Any(), oauthevents.TopicName, oauthevents.OAuthTokenRevoked{
			ProviderKey: "zoom",
			ClientID:    "zoom_client",
		}).Return(nil)

		request, err := http.NewRequest(http.MethodDelete, "/api/integrations/oauth/zoom", nil)
		assert.NoError(t, err)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 200, response.Code)

		cred, _, err := vault.Get(ctx, "zoom")
		assert.NoError(t, err)
		assert.Equal(t, map[string]string{}, cred.Settings)
		assert.False(t, cred.IsEnabled)
		assert.Equal(t, "zoom_client", cred.ClientID)
		assert.Equal(t, "zoom_secret", cred.ClientSecret)
	})
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, myvault.VaultReadWriter[credentials.ProviderCredential], statestore.StateStore, *statestore.MockRandomTokener, *tokenclient.MockOauthClient, *mytime.MockNower, *myqueue.MockTaskQueuer, *mypublisher.MockPublisher) {
	ctx := context.TODO()
	router := mux.NewRouter()

	vault, _, err := myvault.New[credentials.ProviderCredential](ctx)
	assert.NoError(t, err)
	states := statestore.NewInMemoryStateStore()
	tokener := statestore.NewMockRandomTokener(ctrl)
	oauthClient := tokenclient.NewMockOauthClient(ctrl)
	nower := mytime.NewMockNower(ctrl)
	queue := myqueue.NewMockTaskQueuer(ctrl)
	publisher := mypublisher.NewMockPublisher(ctrl)

	sut := NewService(vault, states, tokener, providers.NewRegistry(), oauthClient, nower, queue, publisher)

	publisher.EXPECT().CreateTopic(gomock.Any(), oauthevents.TopicName).Return(nil)

	err = sut.RegisterEndpoints(ctx, router)
	assert.NoError(t, err)

	return ctx, router, vault, states, tokener, oauthClient, nower, queue, publisher
}

func storeCredential(t *testing.T, ctx context.Context, vault myvault.VaultReadWriter[credentials.ProviderCredential], cred credentials.ProviderCredential) {
	cred.CreatedAt = mytime.ExampleTime
	err := vault.Put(ctx, cred.ProviderKey, cred)
	assert.NoError(t, err)
}

func addState(t *testing.T, ctx context.Context, states statestore.StateStore, token string, providerKey string, issuedAt time.Time) {
	err := states.Add(ctx, statestore.OAuthState{
		Token:       token,
		ProviderKey: providerKey,
		CreatedAt:   issuedAt,
		ExpiresAt:   issuedAt.Add(10 * time.Minute),
	})
	assert.NoError(t, err)
}
