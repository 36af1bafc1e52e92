package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/phoenixd-dashboard/dashboard/config"
	"github.com/phoenixd-dashboard/dashboard/internal/adapter/pubsub"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
	"github.com/phoenixd-dashboard/dashboard/internal/storage/paymentlog"
	"go.uber.org/fx"
)

const (
	pubsubKind = pubsub.MetadataKind

	HandlerPaymentLog = "payment_log"
	HandlerExport     = "amqp_export"
	HandlerPoison     = "poison_log"

	routerCloseTimeout = 10 * time.Second
)

// NewWatermillRouter builds the router and ties it to the fx lifecycle.
// Handlers must be registered before OnStart runs.
func NewWatermillRouter(lc fx.Lifecycle, wlogger watermill.LoggerAdapter, logger *slog.Logger) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: routerCloseTimeout}, wlogger)
	if err != nil {
		return nil, fmt.Errorf("watermill router: %w", err)
	}
	router.AddMiddleware(middleware.CorrelationID)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Error("[BUS] router stopped", slog.Any("err", err))
				}
			}()
			select {
			case <-router.Running():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		OnStop: func(context.Context) error { return router.Close() },
	})
	return router, nil
}

type Consumers struct {
	logger   *slog.Logger
	sink     paymentlog.Sink
	exporter message.Publisher // nil when export is disabled
}

type ConsumerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *slog.Logger
	Sink      paymentlog.Sink
	Provider  *pubsub.PublisherProvider
}

func NewConsumers(p ConsumerParams) (*Consumers, error) {
	c := &Consumers{logger: p.Logger, sink: p.Sink}
	if !p.Provider.Enabled() {
		return c, nil
	}

	pub, err := p.Provider.Build(p.Config.AMQP.Exchange)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error { return pub.Close() },
	})
	c.exporter = pub
	return c, nil
}

// [REGISTRATION_PIPELINE]
func (c *Consumers) RegisterHandlers(router *message.Router, sub message.Subscriber, pub message.Publisher) error {
	poison, err := middleware.PoisonQueue(pub, pubsub.TopicEventsPoison)
	if err != nil {
		return fmt.Errorf("poison queue setup: %w", err)
	}

	configs := []struct {
		name    string
		enabled bool
		handler message.NoPublishHandlerFunc
	}{
		{HandlerPaymentLog, paymentlog.Enabled(c.sink), Bind(c.logger, event.KindPaymentReceived, c.OnPaymentReceived)},
		{HandlerExport, c.exporter != nil, c.Export},
	}

	for _, cfg := range configs {
		if !cfg.enabled {
			continue
		}
		router.AddConsumerHandler(cfg.name, pubsub.TopicEvents, sub, cfg.handler).AddMiddleware(
			LoggingMiddleware(c.logger),
			NewRetryMiddleware(c.logger).Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	router.AddConsumerHandler(HandlerPoison, pubsub.TopicEventsPoison, sub, c.OnPoison)

	c.logger.Info("[BUS] pipeline ready",
		slog.Bool("payment_log", paymentlog.Enabled(c.sink)),
		slog.Bool("amqp_export", c.exporter != nil),
	)
	return nil
}
