// Package telehealth creates and manages video-visit meetings. The Zoom
// adapter is the consumer side of the oauth credential lifecycle: it presents
// the brokered access token when one is stored and falls back to a signed
// api-key JWT otherwise.
package telehealth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/lib/mylog"
	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/services/credentials"
	"github.com/carevista/practicebackend/services/vendorclient"
)

const (
	defaultBaseURL = "https://api.zoom.us/v2"

	jwtValidity            = time.Hour
	defaultDurationMinutes = 30
	defaultAgenda          = "Telehealth consultation"
)

type MeetingRequest struct {
	Topic            string
	PatientName      string
	StartTime        time.Time
	DurationMinutes  int
	Agenda           string
	RecordingEnabled bool
}

type Meeting struct {
	MeetingID string `json:"meetingId"`
	JoinURL   string `json:"meetingUrl"`
	StartURL  string `json:"startUrl"`
	Password  string `json:"password"`
	Provider  string `json:"provider"`
}

type MeetingProvider interface {
	CreateMeeting(c context.Context, req MeetingRequest) (Meeting, error)
	GetMeeting(c context.Context, meetingID string) (json.RawMessage, error)
	UpdateMeeting(c context.Context, meetingID string, updates map[string]any) error
	DeleteMeeting(c context.Context, meetingID string) error
	GetRecordings(c context.Context, meetingID string) (json.RawMessage, error)
}

type zoomService struct {
	cred   credentials.ProviderCredential
	client *vendorclient.Client
	userID string
	logger mylog.Logger
}

func NewZoom(cred credentials.ProviderCredential, nower mytime.Nower) MeetingProvider {
	baseURL := cred.Setting(credentials.SettingBaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userID := cred.Setting(credentials.SettingUserID)
	if userID == "" {
		userID = "me"
	}
	return &zoomService{
		cred:   cred,
		client: vendorclient.New(baseURL, newAuthorizer(cred, nower)),
		userID: userID,
		logger: mylog.New("telehealth"),
	}
}

// newAuthorizer prefers the access token stored by the oauth flow. Without
// one it signs a short-lived JWT from the api-key pair.
func newAuthorizer(cred credentials.ProviderCredential, nower mytime.Nower) vendorclient.Authorizer {
	if cred.AccessToken() != "" {
		return vendorclient.StaticTokenAuthorizer{Token: cred.AccessToken()}
	}
	return jwtAuthorizer{
		apiKey:    cred.Setting(credentials.SettingAPIKey),
		apiSecret: cred.Setting(credentials.SettingAPISecret),
		nower:     nower,
	}
}

type jwtAuthorizer struct {
	apiKey    string
	apiSecret string
	nower     mytime.Nower
}

func (a jwtAuthorizer) Authenticate(c context.Context) (string, error) {
	if a.apiKey == "" || a.apiSecret == "" {
		return "", myerrors.NewConfigurationError(fmt.Errorf("zoom api key and secret are required"))
	}

	claims := jwt.MapClaims{
		"iss": a.apiKey,
		"exp": a.nower.Now().Add(jwtValidity).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.apiSecret))
	if err != nil {
		return "", myerrors.NewAuthenticationError(fmt.Errorf("error signing zoom jwt: %s", err))
	}
	return signed, nil
}

func (s *zoomService) guard() error {
	if !s.cred.IsEnabled {
		return myerrors.NewConfigurationError(fmt.Errorf("zoom integration is not enabled"))
	}
	return nil
}

func (s *zoomService) CreateMeeting(c context.Context, req MeetingRequest) (Meeting, error) {
	if err := s.guard(); err != nil {
		return Meeting{}, err
	}

	topic := req.Topic
	if topic == "" {
		topic = "Telehealth Session - " + req.PatientName
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = defaultDurationMinutes
	}
	agenda := req.Agenda
	if agenda == "" {
		agenda = defaultAgenda
	}
	autoRecording := "none"
	if req.RecordingEnabled {
		autoRecording = "cloud"
	}

	body, err := json.Marshal(map[string]any{
		"topic":      topic,
		"type":       2, // scheduled meeting
		"start_time": req.StartTime.UTC().Format(time.RFC3339),
		"duration":   duration,
		"timezone":   "UTC",
		"agenda":     agenda,
		"settings": map[string]any{
			"host_video":             true,
			"participant_video":      true,
			"join_before_host":       false,
			"mute_upon_entry":        true,
			"watermark":              false,
			"use_pmi":                false,
			"approval_type":          2, // no registration
			"audio":                  "both",
			"auto_recording":         autoRecording,
			"waiting_room":           true,
			"meeting_authentication": false,
		},
	})
	if err != nil {
		return Meeting{}, fmt.Errorf("error marshalling meeting request: %s", err)
	}

	_, respBody, err := s.client.Execute(c, http.MethodPost, "/users/"+s.userID+"/meetings", vendorclient.ContentTypeJSON, body, nil)
	if err != nil {
		return Meeting{}, err
	}

	resp := struct {
		ID       int64  `json:"id"`
		JoinURL  string `json:"join_url"`
		StartURL string `json:"start_url"`
		Password string `json:"password"`
	}{}
	err = json.Unmarshal(respBody, &resp)
	if err != nil {
		return Meeting{}, fmt.Errorf("error parsing meeting response: %s", err)
	}

	meetingID := strconv.FormatInt(resp.ID, 10)
	s.logger.Log(c, meetingID, mylog.SeverityInfo, "Created zoom meeting %s", meetingID)

	return Meeting{
		MeetingID: meetingID,
		JoinURL:   resp.JoinURL,
		StartURL:  resp.StartURL,
		Password:  resp.Password,
		Provider:  "zoom",
	}, nil
}

func (s *zoomService) GetMeeting(c context.Context, meetingID string) (json.RawMessage, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/meetings/"+meetingID, "", nil, nil)
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

func (s *zoomService) UpdateMeeting(c context.Context, meetingID string, updates map[string]any) error {
	if err := s.guard(); err != nil {
		return err
	}

	body, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("error marshalling meeting update: %s", err)
	}

	_, _, err = s.client.Execute(c, http.MethodPatch, "/meetings/"+meetingID, vendorclient.ContentTypeJSON, body, nil)
	return err
}

func (s *zoomService) DeleteMeeting(c context.Context, meetingID string) error {
	if err := s.guard(); err != nil {
		return err
	}

	_, _, err := s.client.Execute(c, http.MethodDelete, "/meetings/"+meetingID, "", nil, nil)
	if err != nil {
		return err
	}

	s.logger.Log(c, meetingID, mylog.SeverityInfo, "Deleted zoom meeting %s", meetingID)
	return nil
}

func (s *zoomService) GetRecordings(c context.Context, meetingID string) (json.RawMessage, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	_, respBody, err := s.client.Execute(c, http.MethodGet, "/meetings/"+meetingID+"/recordings", "", nil, nil)
	if err != nil {
		return nil, err
	}
	return respBody, nil
}
