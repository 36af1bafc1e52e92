package pubsub

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	// TopicEvents carries every classified event relayed from the node.
	TopicEvents = "relay.events"
	// TopicEventsPoison receives messages a consumer gave up on.
	TopicEventsPoison = "relay.events.poison"

	MetadataKind    = "kind"
	MetadataSubject = "subject"

	busBufferSize = 256
)

// NewBus creates the in-process bus between the relay and its slow consumers
// (payment log, broker export). Publishing never waits for a consumer ack.
func NewBus(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            busBufferSize,
		BlockPublishUntilSubscriberAck: false,
	}, logger)
}

func NewLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With(slog.String("component", "watermill")))
}
