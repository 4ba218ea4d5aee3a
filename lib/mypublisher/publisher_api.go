package mypublisher

import (
	"context"

	"github.com/carevista/practicebackend/lib/myevents"
)

//go:generate mockgen -source=publisher_api.go -package mypublisher -destination publisher_mock.go Publisher
type Publisher interface {
	CreateTopic(c context.Context, topicName string) error
	Publish(c context.Context, topic string, env myevents.Event) error
}
