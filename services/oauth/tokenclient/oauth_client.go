package tokenclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/services/oauth/providers"
)

type ComposeAuthURLRequest struct {
	ProviderKey string
	ClientID    string
	RedirectURI string
	Scope       string
	State       string
}

type ExchangeCodeRequest struct {
	ProviderKey  string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Code         string
}

type RefreshTokenRequest struct {
	ProviderKey  string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

type TokenResponse struct {
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	AccessToken  string `json:"access_token"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token"`
}

//go:generate mockgen -source=oauth_client.go -package tokenclient -destination oauth_client_mock.go OauthClient
type OauthClient interface {
	ComposeAuthURL(c context.Context, req ComposeAuthURLRequest) (string, error)
	ExchangeCode(c context.Context, req ExchangeCodeRequest) (TokenResponse, error)
	RefreshAccessToken(c context.Context, req RefreshTokenRequest) (TokenResponse, error)
}

type oauthClient struct {
	registry providers.Registry
}

func NewOAuthClient(registry providers.Registry) *oauthClient {
	return &oauthClient{
		registry: registry,
	}
}

func (oc oauthClient) ComposeAuthURL(c context.Context, req ComposeAuthURLRequest) (string, error) {
	descriptor, err := oc.registry.Get(req.ProviderKey)
	if err != nil {
		return "", fmt.Errorf("provider with key '%s' not known", req.ProviderKey)
	}

	u, err := url.Parse(descriptor.AuthURL)
	if err != nil {
		return "", err
	}

	/* Example:
	https://zoom.us/oauth/authorize
		?client_id=abc123
		&redirect_uri=https%3A%2F%2Fclinic.example.com%2Fapi%2Fintegrations%2Foauth%2Fzoom%2Fcallback
		&response_type=code
		&scope=meeting%3Awrite+meeting%3Aread+user%3Aread
		&state=8f14e45fceea167a5a36dedd4bea2543
	*/

	values := url.Values{
		"client_id":     []string{req.ClientID},
		"redirect_uri":  []string{req.RedirectURI},
		"response_type": []string{"code"},
		"scope":         []string{req.Scope},
		"state":         []string{req.State},
	}
	if descriptor.OfflineAccess {
		values.Set("access_type", "offline")
		values.Set("prompt", "consent")
	}
	u.RawQuery = values.Encode()

	return u.String(), nil
}

func (oc oauthClient) ExchangeCode(c context.Context, req ExchangeCodeRequest) (TokenResponse, error) {
	descriptor, err := oc.registry.Get(req.ProviderKey)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("provider with key '%s' not known", req.ProviderKey)
	}

	requestBody := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {req.Code},
		"redirect_uri":  {req.RedirectURI},
		"client_id":     {req.ClientID},
		"client_secret": {req.ClientSecret},
	}.Encode()

	return oc.postTokenRequest(c, descriptor.TokenURL, requestBody)
}

func (oc oauthClient) RefreshAccessToken(c context.Context, req RefreshTokenRequest) (TokenResponse, error) {
	descriptor, err := oc.registry.Get(req.ProviderKey)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("provider with key '%s' not known", req.ProviderKey)
	}

	requestBody := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {req.RefreshToken},
		"client_id":     {req.ClientID},
		"client_secret": {req.ClientSecret},
	}.Encode()

	return oc.postTokenRequest(c, descriptor.TokenURL, requestBody)
}

func (oc oauthClient) postTokenRequest(c context.Context, tokenURL string, requestBody string) (TokenResponse, error) {
	httpClient := newHTTPClient()
	httpRespCode, respBody, err := httpClient.Send(c, http.MethodPost, tokenURL, []byte(requestBody))
	if err != nil {
		if myerrors.IsTimeoutError(err) {
			return TokenResponse{}, err
		}
		return TokenResponse{}, myerrors.NewAuthenticationError(fmt.Errorf("error getting token: %s", err))
	}

	if httpRespCode != 200 {
		return TokenResponse{}, myerrors.NewAuthenticationError(fmt.Errorf("error getting token: http %d: %s", httpRespCode, respBody))
	}

	resp := TokenResponse{}
	err = json.Unmarshal(respBody, &resp)
	if err != nil {
		return TokenResponse{}, myerrors.NewAuthenticationError(fmt.Errorf("error parsing token response: %s", err))
	}

	return resp, nil
}
