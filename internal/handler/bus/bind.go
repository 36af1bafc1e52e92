package bus

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
	"github.com/phoenixd-dashboard/dashboard/internal/metrics"
)

// DomainHandler defines the functional signature for bus consumers.
type DomainHandler func(ctx context.Context, ev event.Event) error

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to a domain handler, handling panic recovery,
// kind filtering and decoding.
func Bind(logger *slog.Logger, kind event.Kind, fn DomainHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				logger.Error("[BUS] panic recovered",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
					slog.String("msg_id", msg.UUID),
				)
			}
		}()

		// [FILTER]
		if kind != "" && msg.Metadata.Get(pubsubKind) != string(kind) {
			return nil
		}

		// [DECODING]
		ev, err := event.Decode(msg.Payload)
		if err != nil {
			metrics.IncParseError("bus")
			logger.Error("[BUS] decode failed", slog.Any("err", err), slog.String("msg_id", msg.UUID))
			return nil // ACK: poison pill protection
		}

		// [EXECUTION]
		// NACK on failure triggers the retry policy.
		return fn(msg.Context(), ev)
	}
}
