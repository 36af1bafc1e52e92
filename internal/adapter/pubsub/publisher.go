package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/phoenixd-dashboard/dashboard/config"
)

// PublisherProvider builds broker publishers for event export.
type PublisherProvider struct {
	url    string
	logger watermill.LoggerAdapter
}

func NewPublisherProvider(cfg *config.Config, logger watermill.LoggerAdapter) *PublisherProvider {
	return &PublisherProvider{url: cfg.AMQP.URL, logger: logger}
}

// Enabled reports whether a broker URL is configured.
func (pp *PublisherProvider) Enabled() bool { return pp.url != "" }

// Build returns a publisher to a durable topic exchange. The topic passed to
// Publish becomes the routing key, so consumers can bind on event kind.
func (pp *PublisherProvider) Build(exchange string) (message.Publisher, error) {
	cfg := amqp.NewDurablePubSubConfig(pp.url, nil)
	cfg.Exchange = amqp.ExchangeConfig{
		GenerateName: func(string) string { return exchange },
		Type:         "topic",
		Durable:      true,
	}
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }

	pub, err := amqp.NewPublisher(cfg, pp.logger)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher for %s: %w", exchange, err)
	}
	return pub, nil
}
