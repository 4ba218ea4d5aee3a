package vendors

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carevista/practicebackend/lib/mycontext"
	"github.com/carevista/practicebackend/lib/myhttp"
	"github.com/carevista/practicebackend/lib/mylog"
	"github.com/carevista/practicebackend/lib/mypublisher"
	"github.com/carevista/practicebackend/services/vendors/vendorevents"
)

type webService struct {
	manager   *Manager
	publisher mypublisher.Publisher
	logger    mylog.Logger
}

func NewService(manager *Manager, pub mypublisher.Publisher) *webService {
	return &webService{
		manager:   manager,
		publisher: pub,
		logger:    mylog.New("vendors"),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/api/integrations/vendors/status", s.statusPage()).Methods("GET")
	router.HandleFunc("/api/integrations/vendors/{vendorKey}/test", s.testConnectionPage()).Methods("POST")
	router.HandleFunc("/api/integrations/vendors/{vendorKey}/reload", s.reloadPage()).Methods("POST")

	err := s.publisher.CreateTopic(context.Background(), vendorevents.TopicName)
	if err != nil {
		return err
	}

	return nil
}

func (s *webService) statusPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		statuses, err := s.manager.Statuses(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, statuses)
	}
}

func (s *webService) testConnectionPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		vendorKey := mux.Vars(r)["vendorKey"]

		adapter, err := s.manager.Get(c, vendorKey)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		result := adapter.TestConnection(c)

		err = s.publisher.Publish(c, vendorevents.TopicName, vendorevents.VendorConnectionChecked{
			VendorKey: vendorKey,
			Success:   result.Success,
			Message:   result.Message,
		})
		if err != nil {
			s.logger.Log(c, vendorKey, mylog.SeverityWarn, "Error publishing connection-check event for vendor %s: %s", vendorKey, err)
		}

		errorWriter.Write(c, w, http.StatusOK, result)
	}
}

// reloadPage drops the cached adapter after a credential change so the next
// vendor call picks up the fresh configuration.
func (s *webService) reloadPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		vendorKey := mux.Vars(r)["vendorKey"]
		s.manager.Reload(vendorKey)

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Success: true,
			Message: "Vendor configuration reloaded",
		})
	}
}
