package oauthevents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/lib/myevents"
)

const (
	TopicName                      = "oauth"
	oauthSetupStartedName          = TopicName + ".setup.started"
	oauthSetupCompletedName        = TopicName + ".setup.completed"
	oauthTokenRefreshCompletedName = TopicName + ".tokenRefresh.completed"
	oauthTokenRevokedName          = TopicName + ".token.revoked"
)

type OAuthEventService interface {
	Subscribe(c context.Context) error
	OnOAuthSetupStarted(c context.Context, topic string, event OAuthSetupStarted) error
	OnOAuthSetupCompleted(c context.Context, topic string, event OAuthSetupCompleted) error
	OnOAuthTokenRefreshCompleted(c context.Context, topic string, event OAuthTokenRefreshCompleted) error
	OnOAuthTokenRevoked(c context.Context, topic string, event OAuthTokenRevoked) error
}

func DispatchEvent(c context.Context, reader io.Reader, service OAuthEventService) error {
	envelope, err := myevents.ParseEventEnvelope(reader)
	if err != nil {
		return myerrors.NewInvalidInputError(err)
	}

	switch envelope.EventTypeName {
	case oauthSetupStartedName:
		{
			event := OAuthSetupStarted{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnOAuthSetupStarted(c, envelope.Topic, event)
		}
	case oauthSetupCompletedName:
		{
			event := OAuthSetupCompleted{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnOAuthSetupCompleted(c, envelope.Topic, event)
		}
	case oauthTokenRefreshCompletedName:
		{
			event := OAuthTokenRefreshCompleted{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnOAuthTokenRefreshCompleted(c, envelope.Topic, event)
		}
	case oauthTokenRevokedName:
		{
			event := OAuthTokenRevoked{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnOAuthTokenRevoked(c, envelope.Topic, event)
		}
	default:
		return myerrors.NewNotImplementedError(fmt.Errorf("%s", envelope.EventTypeName))
	}
}

type OAuthSetupStarted struct {
	ProviderKey string
	ClientID    string
	State       string
}

func (e OAuthSetupStarted) GetEventTypeName() string {
	return oauthSetupStartedName
}

func (e OAuthSetupStarted) GetAggregateName() string {
	return e.ProviderKey
}

type OAuthSetupCompleted struct {
	ProviderKey string
	ClientID    string
	Scope       string
}

func (e OAuthSetupCompleted) GetEventTypeName() string {
	return oauthSetupCompletedName
}

func (e OAuthSetupCompleted) GetAggregateName() string {
	return e.ProviderKey
}

type OAuthTokenRefreshCompleted struct {
	ProviderKey string
	ClientID    string
}

func (e OAuthTokenRefreshCompleted) GetEventTypeName() string {
	return oauthTokenRefreshCompletedName
}

func (e OAuthTokenRefreshCompleted) GetAggregateName() string {
	return e.ProviderKey
}

type OAuthTokenRevoked struct {
	ProviderKey string
	ClientID    string
}

func (e OAuthTokenRevoked) GetEventTypeName() string {
	return oauthTokenRevokedName
}

func (e OAuthTokenRevoked) GetAggregateName() string {
	return e.ProviderKey
}
