package oauth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carevista/practicebackend/lib/mycontext"
	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/lib/myhttp"
	"github.com/carevista/practicebackend/lib/mylog"
	"github.com/carevista/practicebackend/lib/mypublisher"
	"github.com/carevista/practicebackend/lib/myqueue"
	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/lib/myvault"
	"github.com/carevista/practicebackend/services/credentials"
	"github.com/carevista/practicebackend/services/oauth/providers"
	"github.com/carevista/practicebackend/services/oauth/statestore"
	"github.com/carevista/practicebackend/services/oauth/tokenclient"
)

type webService struct {
	service *service
	logger  mylog.Logger
}

func NewService(credentialsVault myvault.VaultReadWriter[credentials.ProviderCredential], states statestore.StateStore, tokener statestore.RandomTokener, registry providers.Registry, oauthClient tokenclient.OauthClient, nower mytime.Nower, queue myqueue.TaskQueuer, pub mypublisher.Publisher) *webService {
	return &webService{
		service: newService(credentialsVault, states, tokener, registry, oauthClient, nower, queue, pub),
		logger:  mylog.New("oauth"),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/api/integrations/oauth/{providerKey}/initiate", s.initiatePage()).Methods("GET")
	router.HandleFunc("/api/integrations/oauth/{providerKey}/callback", s.callbackPage()).Methods("GET")
	router.HandleFunc("/api/integrations/oauth/{providerKey}/status", s.statusPage()).Methods("GET")
	router.HandleFunc("/api/integrations/oauth/{providerKey}/credentials", s.saveCredentialsPage()).Methods("POST")
	router.HandleFunc("/api/integrations/oauth/{providerKey}/refresh", s.refreshPage()).Methods("POST")
	router.HandleFunc("/api/integrations/oauth/{providerKey}/refresh", s.refreshPage()).Methods("GET") // scheduled-task trigger
	router.HandleFunc("/api/integrations/oauth/{providerKey}", s.revokePage()).Methods("DELETE")

	err := s.service.CreateTopics(context.Background())
	if err != nil {
		return err
	}

	return nil
}

func (s *webService) initiatePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		providerKey := mux.Vars(r)["providerKey"]

		resp, err := s.service.initiate(c, providerKey, myhttp.HostnameWithScheme(r))
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, resp)
	}
}

func (s *webService) callbackPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)

		providerKey := mux.Vars(r)["providerKey"]

		if oauthError := r.URL.Query().Get("error"); oauthError != "" {
			s.redirectToAdmin(w, r, fmt.Sprintf("error=%s", oauthError), providerKey)
			return
		}

		code := r.URL.Query().Get("code")
		stateToken := r.URL.Query().Get("state")
		if code == "" || stateToken == "" {
			s.redirectToAdmin(w, r, "error=invalid_callback", providerKey)
			return
		}

		err := s.service.callback(c, providerKey, code, stateToken, myhttp.HostnameWithScheme(r))
		if err != nil {
			s.logger.Log(c, providerKey, mylog.SeverityWarn, "Oauth callback for provider %s failed: %s", providerKey, err)
			s.redirectToAdmin(w, r, fmt.Sprintf("error=%s", callbackErrorCode(err)), providerKey)
			return
		}

		s.redirectToAdmin(w, r, "success=oauth_configured", providerKey)
	}
}

func (s *webService) redirectToAdmin(w http.ResponseWriter, r *http.Request, outcome string, providerKey string) {
	http.Redirect(w, r, fmt.Sprintf("/admin?%s&provider=%s", outcome, providerKey), http.StatusSeeOther)
}

// callbackErrorCode maps the error taxonomy onto the query params the admin
// screen understands.
func callbackErrorCode(err error) string {
	switch {
	case myerrors.IsCSRFError(err):
		return "invalid_state"
	case myerrors.IsConfigurationError(err):
		return "provider_not_configured"
	case myerrors.IsAuthenticationError(err) || myerrors.IsTimeoutError(err):
		return "token_exchange_failed"
	default:
		return "callback_failed"
	}
}

func (s *webService) statusPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		providerKey := mux.Vars(r)["providerKey"]

		resp, err := s.service.status(c, providerKey)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, resp)
	}
}

func (s *webService) saveCredentialsPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		providerKey := mux.Vars(r)["providerKey"]

		req, err := NewCredentialsFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		err = s.service.saveCredentials(c, providerKey, req.ClientID, req.ClientSecret)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Success: true,
			Message: "Credentials saved successfully",
		})
	}
}

func (s *webService) refreshPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		providerKey := mux.Vars(r)["providerKey"]

		err := s.service.refresh(c, providerKey)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Success: true,
			Message: "Token refreshed successfully",
		})
	}
}

func (s *webService) revokePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		providerKey := mux.Vars(r)["providerKey"]

		err := s.service.revoke(c, providerKey)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Success: true,
			Message: "OAuth configuration cleared",
		})
	}
}
