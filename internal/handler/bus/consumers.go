package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
	"github.com/phoenixd-dashboard/dashboard/internal/metrics"
	"github.com/phoenixd-dashboard/dashboard/internal/storage/paymentlog"
)

// [ON_PAYMENT_RECEIVED]
func (c *Consumers) OnPaymentReceived(ctx context.Context, ev event.Event) error {
	p, ok := ev.(event.PaymentReceived)
	if !ok {
		return nil
	}
	if err := c.sink.Write(ctx, paymentlog.FromPayment(p, time.Now())); err != nil {
		metrics.IncPaymentLogWrite("error")
		return err
	}
	metrics.IncPaymentLogWrite("ok")
	return nil
}

// [EXPORT] Forwards the frame unmodified; the event kind is the routing key.
func (c *Consumers) Export(msg *message.Message) error {
	kind := msg.Metadata.Get(pubsubKind)
	if kind == "" {
		kind = event.KindUnknown.String()
	}
	out := message.NewMessage(msg.UUID, msg.Payload)
	for k, v := range msg.Metadata {
		out.Metadata.Set(k, v)
	}
	if err := c.exporter.Publish(kind, out); err != nil {
		return fmt.Errorf("export %s: %w", kind, err)
	}
	return nil
}

// [POISON] Terminal state: the event is dropped after logging.
func (c *Consumers) OnPoison(msg *message.Message) error {
	c.logger.Error("[BUS] message dropped after retries",
		slog.String("msg_id", msg.UUID),
		slog.String("handler", msg.Metadata.Get(middleware.PoisonedHandlerKey)),
		slog.String("reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey)),
		slog.String("kind", msg.Metadata.Get(pubsubKind)),
	)
	return nil
}
