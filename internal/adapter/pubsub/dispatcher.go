package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
)

// EventDispatcher hands relayed events to the in-process bus.
// This keeps the relay agnostic of who consumes them.
type EventDispatcher interface {
	Publish(ctx context.Context, ev event.Event) error
	Publisher() message.Publisher
}

type eventDispatcher struct {
	publisher message.Publisher
}

func NewEventDispatcher(pub message.Publisher) EventDispatcher {
	return &eventDispatcher{publisher: pub}
}

// Publish sends the upstream frame unmodified; the kind travels in metadata
// so consumers can filter without decoding.
func (d *eventDispatcher) Publish(ctx context.Context, ev event.Event) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	msg := message.NewMessage(watermill.NewUUID(), ev.Raw())
	msg.Metadata.Set(MetadataKind, ev.Kind().String())
	if subject := event.Subject(ev); subject != "" {
		msg.Metadata.Set(MetadataSubject, subject)
	}
	msg.SetContext(ctx)

	if err := d.publisher.Publish(TopicEvents, msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", TopicEvents, err)
	}
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}
