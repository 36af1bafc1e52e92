package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		NewLogger,
		func(lc fx.Lifecycle, logger watermill.LoggerAdapter) *gochannel.GoChannel {
			bus := NewBus(logger)
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error { return bus.Close() },
			})
			return bus
		},
		func(bus *gochannel.GoChannel) message.Publisher { return bus },
		func(bus *gochannel.GoChannel) message.Subscriber { return bus },
		NewEventDispatcher,
		NewPublisherProvider,
	),
)
