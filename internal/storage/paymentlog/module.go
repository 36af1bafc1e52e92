package paymentlog

import (
	"context"
	"log/slog"

	"github.com/phoenixd-dashboard/dashboard/config"
	"go.uber.org/fx"
)

var Module = fx.Module("paymentlog",
	fx.Provide(func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (Sink, error) {
		sink, err := Open(cfg.PaymentLog.DSN)
		if err != nil {
			return nil, err
		}
		if !Enabled(sink) {
			logger.Info("[PAYMENTLOG] disabled, no dsn configured")
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return sink.Close() },
		})
		return sink, nil
	}),
)
