package memory

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/pubsub"
)

// PubSub implements both Publisher and Subscriber interfaces using watermill's gochannel
type PubSub struct {
	pubsub *gochannel.GoChannel
	logger *logger.Logger
}

// NewPubSub creates a new memory-based pubsub
func NewPubSub(logger *logger.Logger) pubsub.PubSub {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{
			// keep messages published before the first subscriber arrives
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: false,
			OutputChannelBuffer:            100,
		},
		watermill.NopLogger{},
	)

	return &PubSub{
		pubsub: goChannel,
		logger: logger,
	}
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.pubsub.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.pubsub.Subscribe(ctx, topic)
}

func (p *PubSub) Close() error {
	return p.pubsub.Close()
}
