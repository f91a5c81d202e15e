package kafka

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/assistly/billing/internal/config"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/pubsub"
)

type PubSub struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *logger.Logger
}

// NewPubSub creates a kafka-backed pubsub sharing one sarama configuration
func NewPubSub(cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, ierr.NewError("no kafka brokers configured").
			WithHint("Set kafka.brokers when event.publish_destination is kafka").
			Mark(ierr.ErrValidation)
	}

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               cfg.Kafka.Brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig(cfg),
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create kafka publisher").
			WithReportableDetails(map[string]any{
				"brokers": cfg.Kafka.Brokers,
			}).
			Mark(ierr.ErrSystem)
	}

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               cfg.Kafka.Brokers,
			ConsumerGroup:         cfg.Kafka.ConsumerGroup,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig(cfg),
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		_ = publisher.Close()
		return nil, ierr.WithError(err).
			WithHint("Failed to create kafka subscriber").
			Mark(ierr.ErrSystem)
	}

	return &PubSub{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger,
	}, nil
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.publisher.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.subscriber.Subscribe(ctx, topic)
}

func (p *PubSub) Close() error {
	if err := p.publisher.Close(); err != nil {
		p.logger.Errorw("failed to close kafka publisher", "error", err)
	}
	return p.subscriber.Close()
}
