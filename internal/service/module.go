package service

import (
	"log/slog"

	"github.com/phoenixd-dashboard/dashboard/config"
	"github.com/phoenixd-dashboard/dashboard/internal/adapter/phoenixd"
	"github.com/phoenixd-dashboard/dashboard/internal/adapter/pubsub"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/registry"
	"github.com/phoenixd-dashboard/dashboard/internal/reconnect"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		func(feed *phoenixd.Feed, hub registry.Hubber, dispatcher pubsub.EventDispatcher, cfg *config.Config, logger *slog.Logger) *Relay {
			return NewRelay(feed, hub, dispatcher, logger, reconnect.WithPolicy(reconnect.FromConfig(cfg.Reconnect)))
		},
		// Domain services
		fx.Annotate(
			func(hub registry.Hubber, relay *Relay, cfg *config.Config) *DeliveryService {
				return NewDeliveryService(hub, relay.Upstream(), cfg.Hub.BufferSize)
			},
			fx.As(new(Deliverer)),
		),
		fx.Annotate(
			NewOverviewService,
			fx.As(new(Overviewer)),
		),
	),

	// [LIFECYCLE] the relay connects once everything it feeds is constructed
	fx.Invoke(func(lc fx.Lifecycle, relay *Relay) {
		lc.Append(fx.Hook{
			OnStart: relay.Start,
			OnStop:  relay.Shutdown,
		})
	}),
)
