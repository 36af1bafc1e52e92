package service

import (
	"context"
	"log/slog"

	"github.com/phoenixd-dashboard/dashboard/internal/adapter/phoenixd"
	"github.com/phoenixd-dashboard/dashboard/internal/adapter/pubsub"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/registry"
	"github.com/phoenixd-dashboard/dashboard/internal/reconnect"
)

const UpstreamName = "upstream"

// Upstream is the observable side of the node connection.
type Upstream interface {
	IsConnected() bool
	State() model.ConnectionState
	Attempts() int
}

// [RELAY] OWNS THE NODE FEED FOR THE LIFETIME OF THE PROCESS
// Every decoded event is broadcast to the hub first and then handed to the
// bus for the slow consumers (payment log, broker export).
type Relay struct {
	feed       *phoenixd.Feed
	hub        registry.Hubber
	dispatcher pubsub.EventDispatcher
	supervisor *reconnect.Supervisor
	logger     *slog.Logger
}

func NewRelay(feed *phoenixd.Feed, hub registry.Hubber, dispatcher pubsub.EventDispatcher, logger *slog.Logger, opts ...reconnect.Option) *Relay {
	r := &Relay{
		feed:       feed,
		hub:        hub,
		dispatcher: dispatcher,
		logger:     logger,
	}

	feed.Handle(r.broadcast)
	if dispatcher != nil {
		feed.Handle(r.publish)
	}

	base := []reconnect.Option{
		reconnect.WithLogger(logger),
		reconnect.OnConnect(func() {
			r.logger.Info("[RELAY] listening to node events")
		}),
	}
	r.supervisor = reconnect.New(UpstreamName, feed, append(base, opts...)...)
	return r
}

// Start connects to the node in the background. The connection outlives ctx
// and ends only with Shutdown.
func (r *Relay) Start(ctx context.Context) error {
	return r.supervisor.Start(context.WithoutCancel(ctx))
}

func (r *Relay) Shutdown(ctx context.Context) error {
	return r.supervisor.Shutdown(ctx)
}

func (r *Relay) Upstream() Upstream { return r.supervisor }

func (r *Relay) broadcast(_ context.Context, ev event.Event) {
	delivered := r.hub.Broadcast(ev)

	attrs := []any{
		slog.String("kind", ev.Kind().String()),
		slog.Int("delivered", delivered),
	}
	if subject := event.Subject(ev); subject != "" {
		attrs = append(attrs, slog.String("subject", subject))
	}
	switch e := ev.(type) {
	case event.PaymentReceived:
		r.logger.Info("[RELAY] payment received", append(attrs, slog.Int64("amount_sat", e.AmountSat))...)
	case event.Unknown:
		r.logger.Debug("[RELAY] unrecognised event forwarded", append(attrs, slog.String("type", e.Type))...)
	default:
		r.logger.Debug("[RELAY] event relayed", attrs...)
	}
}

func (r *Relay) publish(ctx context.Context, ev event.Event) {
	if err := r.dispatcher.Publish(ctx, ev); err != nil {
		r.logger.Warn("[RELAY] bus publish failed", slog.String("kind", ev.Kind().String()), slog.Any("err", err))
	}
}
