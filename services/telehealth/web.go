package telehealth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/carevista/practicebackend/lib/mycontext"
	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/lib/myhttp"
	"github.com/carevista/practicebackend/lib/mylog"
	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/lib/myvault"
	"github.com/carevista/practicebackend/services/credentials"
)

const zoomProviderKey = "zoom"

type webService struct {
	credentialsVault myvault.VaultReadWriter[credentials.ProviderCredential]
	nower            mytime.Nower
	logger           mylog.Logger
}

func NewService(credentialsVault myvault.VaultReadWriter[credentials.ProviderCredential], nower mytime.Nower) *webService {
	return &webService{
		credentialsVault: credentialsVault,
		nower:            nower,
		logger:           mylog.New("telehealth"),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/api/integrations/telehealth/zoom/meetings", s.createMeetingPage()).Methods("POST")
	router.HandleFunc("/api/integrations/telehealth/zoom/meetings/{meetingID}", s.getMeetingPage()).Methods("GET")
	router.HandleFunc("/api/integrations/telehealth/zoom/meetings/{meetingID}", s.deleteMeetingPage()).Methods("DELETE")
	router.HandleFunc("/api/integrations/telehealth/zoom/meetings/{meetingID}/recordings", s.recordingsPage()).Methods("GET")
}

// provider builds the adapter per request so a reconfigured or freshly
// authorized credential is picked up immediately.
func (s *webService) provider(c context.Context) (MeetingProvider, error) {
	cred, exists, err := s.credentialsVault.Get(c, zoomProviderKey)
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching zoom credential: %s", err))
	}
	if !exists {
		return nil, myerrors.NewConfigurationError(fmt.Errorf("zoom integration is not configured"))
	}
	return NewZoom(cred, s.nower), nil
}

type meetingRequest struct {
	Topic            string    `json:"topic"`
	PatientName      string    `json:"patientName"`
	StartTime        time.Time `json:"startTime"`
	DurationMinutes  int       `json:"durationMinutes"`
	Agenda           string    `json:"agenda"`
	RecordingEnabled bool      `json:"recordingEnabled"`
}

func (s *webService) createMeetingPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		req := meetingRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing meeting request: %s", err)))
			return
		}

		zoom, err := s.provider(c)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		meeting, err := zoom.CreateMeeting(c, MeetingRequest{
			Topic:            req.Topic,
			PatientName:      req.PatientName,
			StartTime:        req.StartTime,
			DurationMinutes:  req.DurationMinutes,
			Agenda:           req.Agenda,
			RecordingEnabled: req.RecordingEnabled,
		})
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, meeting)
	}
}

func (s *webService) getMeetingPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		zoom, err := s.provider(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		meeting, err := zoom.GetMeeting(c, mux.Vars(r)["meetingID"])
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, meeting)
	}
}

func (s *webService) deleteMeetingPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		zoom, err := s.provider(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		err = zoom.DeleteMeeting(c, mux.Vars(r)["meetingID"])
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Success: true,
			Message: "Meeting deleted successfully",
		})
	}
}

func (s *webService) recordingsPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		zoom, err := s.provider(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		recordings, err := zoom.GetRecordings(c, mux.Vars(r)["meetingID"])
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, recordings)
	}
}
