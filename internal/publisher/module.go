package publisher

import (
	"context"

	"github.com/assistly/billing/internal/config"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/pubsub"
	"github.com/assistly/billing/internal/pubsub/kafka"
	"github.com/assistly/billing/internal/pubsub/memory"
	"github.com/assistly/billing/internal/types"
	"go.uber.org/fx"
)

// Module provides the broker selected by event.publish_destination and the event publisher on top of it
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewPubSub,
			func(ps pubsub.PubSub) pubsub.Publisher { return ps },
			NewEventPublisher,
		),
		fx.Invoke(func(lc fx.Lifecycle, ps pubsub.PubSub) {
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return ps.Close()
				},
			})
		}),
	)
}

// NewPubSub selects the broker implementation
func NewPubSub(cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	switch cfg.Event.PublishDestination {
	case types.PublishToKafka:
		return kafka.NewPubSub(cfg, log)
	default:
		return memory.NewPubSub(log), nil
	}
}
