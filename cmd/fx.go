package cmd

import (
	"log/slog"

	"github.com/phoenixd-dashboard/dashboard/config"
	httpsrv "github.com/phoenixd-dashboard/dashboard/infra/server/http"
	"github.com/phoenixd-dashboard/dashboard/infra/tracing"
	"github.com/phoenixd-dashboard/dashboard/internal/adapter/phoenixd"
	"github.com/phoenixd-dashboard/dashboard/internal/adapter/pubsub"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/registry"
	"github.com/phoenixd-dashboard/dashboard/internal/handler/bus"
	"github.com/phoenixd-dashboard/dashboard/internal/handler/lp"
	"github.com/phoenixd-dashboard/dashboard/internal/handler/rest"
	"github.com/phoenixd-dashboard/dashboard/internal/handler/ws"
	"github.com/phoenixd-dashboard/dashboard/internal/service"
	"github.com/phoenixd-dashboard/dashboard/internal/storage/paymentlog"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// Options is the full dependency graph of the relay server.
func Options(cfg *config.Config, logger *slog.Logger) fx.Option {
	return fx.Options(
		fx.Provide(
			func() *config.Config { return cfg },
			func() *slog.Logger { return logger },
		),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),

		tracing.Module,
		pubsub.Module,
		paymentlog.Module,
		registry.Module,
		phoenixd.Module,
		// Decorations only reach into the module that declares them, so the
		// REST logging wrapper is applied at the root.
		fx.Decorate(phoenixd.NewLoggingService),
		// bus consumers start before the relay begins publishing
		bus.Module,
		service.Module,
		ws.Module,
		lp.Module,
		rest.Module,
		httpsrv.Module,
	)
}

func NewApp(cfg *config.Config, logger *slog.Logger) *fx.App {
	return fx.New(Options(cfg, logger))
}
