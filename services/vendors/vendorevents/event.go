package vendorevents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/carevista/practicebackend/lib/myerrors"
	"github.com/carevista/practicebackend/lib/myevents"
)

const (
	TopicName                   = "vendors"
	vendorCallCompletedName     = TopicName + ".call.completed"
	vendorStatusChangedName     = TopicName + ".status.changed"
	vendorConnectionCheckedName = TopicName + ".connection.checked"
)

type VendorEventService interface {
	Subscribe(c context.Context) error
	OnVendorCallCompleted(c context.Context, topic string, event VendorCallCompleted) error
	OnVendorStatusChanged(c context.Context, topic string, event VendorStatusChanged) error
	OnVendorConnectionChecked(c context.Context, topic string, event VendorConnectionChecked) error
}

func DispatchEvent(c context.Context, reader io.Reader, service VendorEventService) error {
	envelope, err := myevents.ParseEventEnvelope(reader)
	if err != nil {
		return myerrors.NewInvalidInputError(err)
	}

	switch envelope.EventTypeName {
	case vendorCallCompletedName:
		{
			event := VendorCallCompleted{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnVendorCallCompleted(c, envelope.Topic, event)
		}
	case vendorStatusChangedName:
		{
			event := VendorStatusChanged{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnVendorStatusChanged(c, envelope.Topic, event)
		}
	case vendorConnectionCheckedName:
		{
			event := VendorConnectionChecked{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnVendorConnectionChecked(c, envelope.Topic, event)
		}
	default:
		return myerrors.NewNotImplementedError(fmt.Errorf("%s", envelope.EventTypeName))
	}
}

// VendorCallCompleted is the transaction-log record of one adapter call.
type VendorCallCompleted struct {
	VendorKey string
	Operation string
	VendorID  string
	Success   bool
	Status    string
}

func (e VendorCallCompleted) GetEventTypeName() string {
	return vendorCallCompletedName
}

func (e VendorCallCompleted) GetAggregateName() string {
	return e.VendorKey
}

type VendorStatusChanged struct {
	VendorKey  string
	Enabled    bool
	Configured bool
}

func (e VendorStatusChanged) GetEventTypeName() string {
	return vendorStatusChangedName
}

func (e VendorStatusChanged) GetAggregateName() string {
	return e.VendorKey
}

type VendorConnectionChecked struct {
	VendorKey string
	Success   bool
	Message   string
}

func (e VendorConnectionChecked) GetEventTypeName() string {
	return vendorConnectionCheckedName
}

func (e VendorConnectionChecked) GetAggregateName() string {
	return e.VendorKey
}
