package oauth

import (
	"net/http"
	"time"

	formcodec "github.com/go-playground/form/v4"

	"github.com/carevista/practicebackend/lib/myerrors"
)

type InitiateResponse struct {
	AuthURL string `json:"authUrl"`
	State   string `json:"state"`
}

type StatusResponse struct {
	Configured  bool       `json:"configured"`
	HasClientID bool       `json:"hasClientId"`
	HasTokens   bool       `json:"hasTokens"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	AuthType    string     `json:"authType,omitempty"`
}

type CredentialsRequest struct {
	ClientID     string `form:"client_id"`
	ClientSecret string `form:"client_secret"`
}

func NewCredentialsFromRequest(r *http.Request) (CredentialsRequest, error) {
	err := r.ParseForm()
	if err != nil {
		return CredentialsRequest{}, myerrors.NewInvalidInputError(err)
	}

	req := CredentialsRequest{}
	err = formcodec.NewDecoder().Decode(&req, r.Form)
	if err != nil {
		return CredentialsRequest{}, myerrors.NewInvalidInputError(err)
	}

	return req, nil
}
