package vendorclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/lib/mytime"
)

// tokens are considered expired this long before the provider says so
const expirySafetyMargin = 300 * time.Second

// Authorizer yields the bearer token for an outbound vendor call.
type Authorizer interface {
	Authenticate(c context.Context) (string, error)
}

// StaticTokenAuthorizer presents a fixed token, used by vendors that
// authenticate with an api-key style credential instead of a token endpoint.
type StaticTokenAuthorizer struct {
	Token string
}

func (a StaticTokenAuthorizer) Authenticate(c context.Context) (string, error) {
	if a.Token == "" {
		return "", myerrors.NewConfigurationError(fmt.Errorf("no credential available"))
	}
	return a.Token, nil
}

// TokenCache caches a client-credentials bearer token per adapter instance.
// The token is owned by this cache only: process-local, never persisted.
type TokenCache struct {
	// the mutex is held across the fetch so that concurrent callers
	// hitting an empty or expired cache coalesce into one token request
	mutex sync.Mutex

	tokenURL     string
	clientID     string
	clientSecret string
	grantBody    string
	nower        mytime.Nower

	accessToken string
	expiresAt   time.Time
}

func NewTokenCache(tokenURL string, clientID string, clientSecret string, grantBody string, nower mytime.Nower) *TokenCache {
	return &TokenCache{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		grantBody:    grantBody,
		nower:        nower,
	}
}

func (tc *TokenCache) Authenticate(c context.Context) (string, error) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	now := tc.nower.Now()
	if tc.accessToken != "" && now.Before(tc.expiresAt) {
		return tc.accessToken, nil
	}

	httpRespCode, respBody, err := postBasicAuthForm(c, tc.tokenURL, tc.clientID, tc.clientSecret, []byte(tc.grantBody))
	if err != nil {
		if myerrors.IsTimeoutError(err) {
			return "", err
		}
		return "", myerrors.NewAuthenticationError(fmt.Errorf("error fetching token: %s", err))
	}

	if httpRespCode != 200 {
		// cache left untouched: a previous token, if any, was already expired
		return "", myerrors.NewAuthenticationError(fmt.Errorf("error fetching token: http %d: %s", httpRespCode, respBody))
	}

	resp := struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}{}
	err = json.Unmarshal(respBody, &resp)
	if err != nil {
		return "", myerrors.NewAuthenticationError(fmt.Errorf("error parsing token response: %s", err))
	}
	if resp.AccessToken == "" {
		return "", myerrors.NewAuthenticationError(fmt.Errorf("token response carried no access token"))
	}

	tc.accessToken = resp.AccessToken
	tc.expiresAt = now.Add(time.Duration(resp.ExpiresIn)*time.Second - expirySafetyMargin)

	return tc.accessToken, nil
}
