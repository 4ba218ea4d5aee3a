package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/lib/mylog"
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
	stateTTL = 10 * time.Minute

	// a scheduled refresh fires this long before the access-token expires
	refreshLeeway = 5 * time.Minute
)

type service struct {
	credentialsVault myvault.VaultReadWriter[credentials.ProviderCredential]
	states           statestore.StateStore
	tokener          statestore.RandomTokener
	registry         providers.Registry
	oauthClient      tokenclient.OauthClient
	nower            mytime.Nower
	queue            myqueue.TaskQueuer
	publisher        mypublisher.Publisher
	logger           mylog.Logger
}

func newService(credentialsVault myvault.VaultReadWriter[credentials.ProviderCredential], states statestore.StateStore, tokener statestore.RandomTokener, registry providers.Registry, oauthClient tokenclient.OauthClient, nower mytime.Nower, queue myqueue.TaskQueuer, pub mypublisher.Publisher) *service {
	return &service{
		credentialsVault: credentialsVault,
		states:           states,
		tokener:          tokener,
		registry:         registry,
		oauthClient:      oauthClient,
		nower:            nower,
		queue:            queue,
		publisher:        pub,
		logger:           mylog.New("oauth"),
	}
}

func (s *service) CreateTopics(c context.Context) error {
	err := s.publisher.CreateTopic(c, oauthevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", oauthevents.TopicName, err)
	}

	return nil
}

func (s *service) initiate(c context.Context, providerKey string, currentHostname string) (InitiateResponse, error) {
	now := s.nower.Now()

	s.logger.Log(c, providerKey, mylog.SeverityInfo, "Start oauth setup for provider %s", providerKey)

	descriptor, err := s.registry.Get(providerKey)
	if err != nil {
		return InitiateResponse{}, myerrors.NewInvalidInputError(fmt.Errorf("provider with key '%s' not known", providerKey))
	}
	if descriptor.APIKeyOnly {
		return InitiateResponse{}, myerrors.NewConfigurationError(fmt.Errorf("provider %s uses api-key authentication, not oauth", providerKey))
	}

	cred, exists, err := s.credentialsVault.Get(c, providerKey)
	if err != nil {
		return InitiateResponse{}, myerrors.NewInternalError(fmt.Errorf("error fetching credential: %s", err))
	}
	if !exists || !cred.HasClientID() {
		return InitiateResponse{}, myerrors.NewConfigurationError(fmt.Errorf("provider %s has no client-id configured", providerKey))
	}

	stateToken, err := s.tokener.Create()
	if err != nil {
		return InitiateResponse{}, myerrors.NewInternalError(fmt.Errorf("error creating state token: %s", err))
	}

	err = s.states.Add(c, statestore.OAuthState{
		Token:       stateToken,
		ProviderKey: providerKey,
		CreatedAt:   now,
		ExpiresAt:   now.Add(stateTTL),
	})
	if err != nil {
		return InitiateResponse{}, myerrors.NewInternalError(fmt.Errorf("error storing state: %s", err))
	}

	// opportunistic cleanup of stale states
	swept, err := s.states.SweepExpired(c, now)
	if err == nil && swept > 0 {
		s.logger.Log(c, providerKey, mylog.SeverityDebug, "Swept %d expired oauth states", swept)
	}

	authURL, err := s.oauthClient.ComposeAuthURL(c, tokenclient.ComposeAuthURLRequest{
		ProviderKey: providerKey,
		ClientID:    cred.ClientID,
		RedirectURI: createCallbackURL(currentHostname, providerKey),
		Scope:       descriptor.DefaultScope,
		State:       stateToken,
	})
	if err != nil {
		return InitiateResponse{}, myerrors.NewInternalError(fmt.Errorf("error composing auth url: %s", err))
	}

	err = s.publisher.Publish(c, oauthevents.TopicName, oauthevents.OAuthSetupStarted{
		ProviderKey: providerKey,
		ClientID:    cred.ClientID,
		State:       stateToken,
	})
	if err != nil {
		return InitiateResponse{}, myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
	}

	s.logger.Log(c, providerKey, mylog.SeverityInfo, "Composed authorization url for provider %s", providerKey)

	return InitiateResponse{
		AuthURL: authURL,
		State:   stateToken,
	}, nil
}

func (s *service) callback(c context.Context, providerKey string, code string, stateToken string, currentHostname string) error {
	now := s.nower.Now()

	s.logger.Log(c, providerKey, mylog.SeverityInfo, "Continue oauth setup for provider %s (callback)", providerKey)

	// The state is deleted as soon as it is found, whatever happens next.
	// A failed token exchange can never be retried with the same state.
	state, found, err := s.states.Consume(c, stateToken)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error consuming state: %s", err))
	}
	if !found || state.ProviderKey != providerKey {
		return myerrors.NewCSRFError(fmt.Errorf("state token unknown, already used or bound to another provider"))
	}
	if now.After(state.ExpiresAt) {
		return myerrors.NewCSRFError(fmt.Errorf("state token expired"))
	}

	descriptor, err := s.registry.Get(providerKey)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("provider with key '%s' not known", providerKey))
	}

	cred, exists, err := s.credentialsVault.Get(c, providerKey)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching credential: %s", err))
	}
	if !exists || !cred.HasClientID() {
		return myerrors.NewConfigurationError(fmt.Errorf("provider %s has no client-id configured", providerKey))
	}

	tokenResp, err := s.oauthClient.ExchangeCode(c, tokenclient.ExchangeCodeRequest{
		ProviderKey:  providerKey,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		RedirectURI:  createCallbackURL(currentHostname, providerKey),
		Code:         code,
	})
	if err != nil {
		// credential left as-is: no partial token write
		return err
	}

	expiresAt, expiryKnown := time.Time{}, false
	err = s.credentialsVault.RunInTransaction(c, func(c context.Context) error {
		cred, exists, err := s.credentialsVault.Get(c, providerKey)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching credential: %s", err))
		}
		if !exists {
			return myerrors.NewConfigurationError(fmt.Errorf("provider %s has no credential stored", providerKey))
		}

		scope := tokenResp.Scope
		if scope == "" {
			scope = descriptor.DefaultScope
		}

		settings := map[string]string{
			credentials.SettingAccessToken:  tokenResp.AccessToken,
			credentials.SettingRefreshToken: tokenResp.RefreshToken,
			credentials.SettingScope:        scope,
		}
		if tokenResp.ExpiresIn > 0 {
			expiresAt = now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
			expiryKnown = true
			settings[credentials.SettingExpiresAt] = credentials.FormatExpiresAt(expiresAt)
		}

		cred.Settings = settings
		cred.LastModified = &now
		err = s.credentialsVault.Put(c, providerKey, cred)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing credential: %s", err))
		}

		err = s.publisher.Publish(c, oauthevents.TopicName, oauthevents.OAuthSetupCompleted{
			ProviderKey: providerKey,
			ClientID:    cred.ClientID,
			Scope:       scope,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return err
	}

	if expiryKnown {
		s.scheduleRefresh(c, providerKey, expiresAt)
	}

	s.logger.Log(c, providerKey, mylog.SeverityInfo, "Completed oauth setup for provider %s", providerKey)

	return nil
}

func (s *service) refresh(c context.Context, providerKey string) error {
	now := s.nower.Now()

	s.logger.Log(c, providerKey, mylog.SeverityInfo, "Start token-refresh for provider %s", providerKey)

	descriptor, err := s.registry.Get(providerKey)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("provider with key '%s' not known", providerKey))
	}
	if descriptor.APIKeyOnly {
		return myerrors.NewConfigurationError(fmt.Errorf("provider %s uses api-key authentication, not oauth", providerKey))
	}

	cred, exists, err := s.credentialsVault.Get(c, providerKey)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching credential: %s", err))
	}
	if !exists {
		return myerrors.NewConfigurationError(fmt.Errorf("provider %s not configured", providerKey))
	}
	if cred.RefreshToken() == "" {
		return myerrors.NewConfigurationError(fmt.Errorf("provider %s has no refresh token available", providerKey))
	}

	tokenResp, err := s.oauthClient.RefreshAccessToken(c, tokenclient.RefreshTokenRequest{
		ProviderKey:  providerKey,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		RefreshToken: cred.RefreshToken(),
	})
	if err != nil {
		// stored tokens deliberately untouched: last known-good state
		// remains usable until natural expiry
		return err
	}

	expiresAt, expiryKnown := time.Time{}, false
	err = s.credentialsVault.RunInTransaction(c, func(c context.Context) error {
		cred, exists, err := s.credentialsVault.Get(c, providerKey)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching credential: %s", err))
		}
		if !exists {
			return myerrors.NewConfigurationError(fmt.Errorf("provider %s not configured", providerKey))
		}

		if cred.Settings == nil {
			cred.Settings = map[string]string{}
		}
		cred.Settings[credentials.SettingAccessToken] = tokenResp.AccessToken
		// not all providers rotate the refresh-token
		if tokenResp.RefreshToken != "" {
			cred.Settings[credentials.SettingRefreshToken] = tokenResp.RefreshToken
		}
		if tokenResp.ExpiresIn > 0 {
			expiresAt = now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
			expiryKnown = true
			cred.Settings[credentials.SettingExpiresAt] = credentials.FormatExpiresAt(expiresAt)
		} else {
			delete(cred.Settings, credentials.SettingExpiresAt)
		}

		cred.LastModified = &now
		err = s.credentialsVault.Put(c, providerKey, cred)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing credential: %s", err))
		}

		err = s.publisher.Publish(c, oauthevents.TopicName, oauthevents.OAuthTokenRefreshCompleted{
			ProviderKey: providerKey,
			ClientID:    cred.ClientID,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return err
	}

	if expiryKnown {
		s.scheduleRefresh(c, providerKey, expiresAt)
	}

	s.logger.Log(c, providerKey, mylog.SeverityInfo, "Completed token-refresh for provider %s", providerKey)

	return nil
}

func (s *service) status(c context.Context, providerKey string) (StatusResponse, error) {
	descriptor, err := s.registry.Get(providerKey)
	if err != nil {
		return StatusResponse{}, myerrors.NewInvalidInputError(fmt.Errorf("provider with key '%s' not known", providerKey))
	}
	if descriptor.APIKeyOnly {
		return StatusResponse{
			AuthType: "api_key",
		}, nil
	}

	cred, exists, err := s.credentialsVault.Get(c, providerKey)
	if err != nil {
		return StatusResponse{}, myerrors.NewInternalError(fmt.Errorf("error fetching credential: %s", err))
	}
	if !exists {
		return StatusResponse{}, nil
	}

	resp := StatusResponse{
		Configured:  cred.IsConfigured(),
		HasClientID: cred.HasClientID(),
		HasTokens:   cred.HasTokens(),
	}
	if expiresAt, known := cred.ExpiresAt(); known {
		resp.ExpiresAt = &expiresAt
	}

	return resp, nil
}

func (s *service) saveCredentials(c context.Context, providerKey string, clientID string, clientSecret string) error {
	now := s.nower.Now()

	s.logger.Log(c, providerKey, mylog.SeverityInfo, "Save credentials for provider %s", providerKey)

	_, err := s.registry.Get(providerKey)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("provider with key '%s' not known", providerKey))
	}
	if clientID == "" || clientSecret == "" {
		return myerrors.NewInvalidInputError(fmt.Errorf("client_id and client_secret are required"))
	}

	return s.credentialsVault.RunInTransaction(c, func(c context.Context) error {
		cred, exists, err := s.credentialsVault.Get(c, providerKey)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching credential: %s", err))
		}

		if !exists {
			cred = credentials.ProviderCredential{
				ProviderKey: providerKey,
				IsEnabled:   false,
				Settings:    map[string]string{},
				CreatedAt:   now,
			}
		}

		// settings and enabled-flag survive a credential update
		cred.ClientID = clientID
		cred.ClientSecret = clientSecret
		cred.LastModified = &now

		err = s.credentialsVault.Put(c, providerKey, cred)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing credential: %s", err))
		}

		return nil
	})
}

func (s *service) revoke(c context.Context, providerKey string) error {
	now := s.nower.Now()

	s.logger.Log(c, providerKey, mylog.SeverityInfo, "Revoke oauth configuration for provider %s", providerKey)

	return s.credentialsVault.RunInTransaction(c, func(c context.Context) error {
		cred, exists, err := s.credentialsVault.Get(c, providerKey)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching credential: %s", err))
		}
		if !exists {
			return myerrors.NewNotFoundError(fmt.Errorf("provider %s not configured", providerKey))
		}

		// tokens are cleared, client-id/secret stay for reconfiguration
		cred.Settings = map[string]string{}
		cred.IsEnabled = false
		cred.LastModified = &now

		err = s.credentialsVault.Put(c, providerKey, cred)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing credential: %s", err))
		}

		err = s.publisher.Publish(c, oauthevents.TopicName, oauthevents.OAuthTokenRevoked{
			ProviderKey: providerKey,
			ClientID:    cred.ClientID,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
}

func (s *service) scheduleRefresh(c context.Context, providerKey string, expiresAt time.Time) {
	err := s.queue.Enqueue(c, myqueue.Task{
		UID:            fmt.Sprintf("token-refresh-%s-%d", providerKey, expiresAt.UnixMilli()),
		WebhookURLPath: fmt.Sprintf("/api/integrations/oauth/%s/refresh", providerKey),
		Payload:        []byte{},
		NotBefore:      expiresAt.Add(-refreshLeeway),
	})
	if err != nil {
		// a missed schedule is recoverable: refresh can still be triggered manually
		s.logger.Log(c, providerKey, mylog.SeverityWarn, "Error scheduling token-refresh for provider %s: %s", providerKey, err)
	}
}

func createCallbackURL(hostname string, providerKey string) string {
	return fmt.Sprintf("%s/api/integrations/oauth/%s/callback", hostname, providerKey)
}
