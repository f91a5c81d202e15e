// Package publisher turns domain events into watermill messages on the configured broker.
package publisher

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/assistly/billing/internal/config"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/pubsub"
	"github.com/assistly/billing/internal/types"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is the envelope every domain event is published in
type Event struct {
	ID        string          `json:"id"`
	Type      types.EventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	// Key identifies the aggregate the event is about (subscription, coupon or user id)
	Key     string `json:"key"`
	Payload any    `json:"payload"`
}

// NewEvent stamps a new envelope
func NewEvent(eventType types.EventType, key string, payload any) *Event {
	return &Event{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Key:       key,
		Payload:   payload,
	}
}

// EventPublisher handles domain event publishing
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
}

type eventPublisher struct {
	pubSub pubsub.Publisher
	config *config.EventConfig
	logger *logger.Logger
}

func NewEventPublisher(cfg *config.Configuration, pubSub pubsub.Publisher, logger *logger.Logger) EventPublisher {
	return &eventPublisher{
		pubSub: pubSub,
		config: &cfg.Event,
		logger: logger,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to encode %s event", event.Type).
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("partition_key", event.Key)

	topic := event.Type.Topic(p.config.TopicPrefix)

	p.logger.Debugw("publishing event",
		"event_id", event.ID,
		"event_type", event.Type,
		"topic", topic,
		"destination", p.config.PublishDestination,
	)

	if err := p.pubSub.Publish(ctx, topic, msg); err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to publish %s event", event.Type).
			WithReportableDetails(map[string]any{
				"event_id": event.ID,
				"topic":    topic,
			}).
			Mark(ierr.ErrSystem)
	}
	return nil
}
