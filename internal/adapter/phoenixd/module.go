package phoenixd

import (
	"log/slog"

	"github.com/phoenixd-dashboard/dashboard/config"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("phoenixd",
	fx.Provide(
		fx.Annotate(
			func(cfg *config.Config, tp trace.TracerProvider) (*Client, error) {
				return NewClient(cfg.Phoenixd, cfg.Breaker, WithTracerProvider(tp))
			},
			fx.As(new(Service)),
		),
		func(cfg *config.Config, logger *slog.Logger) (*Feed, error) {
			endpoint, err := cfg.Phoenixd.WebSocketURL()
			if err != nil {
				return nil, err
			}
			return NewFeed(endpoint, cfg.Phoenixd.Password,
				WithFeedLogger(logger),
				WithKeepalive(cfg.Phoenixd.PingInterval, cfg.Phoenixd.PongWait),
			), nil
		},
	),
)
