package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/registry"
)

// [DELIVERY_SERVICE] PRIMARY INTERFACE FOR TRANSPORT HANDLERS (Websocket/Long-poll)
type Deliverer interface {
	Subscribe(ctx context.Context, meta registry.ConnectMetadata) (registry.Subscriber, error)
	Unsubscribe(id uuid.UUID)
	Status() model.RelayStatus
}

type DeliveryService struct {
	hub        registry.Hubber
	upstream   Upstream
	bufferSize int
}

func NewDeliveryService(hub registry.Hubber, upstream Upstream, bufferSize int) *DeliveryService {
	return &DeliveryService{
		hub:        hub,
		upstream:   upstream,
		bufferSize: bufferSize,
	}
}

// [SUBSCRIBE] HANDLES CONNECTION LIFECYCLE INITIATION
// The subscriber is bound to ctx: it closes when the transport's request ends.
func (s *DeliveryService) Subscribe(ctx context.Context, meta registry.ConnectMetadata) (registry.Subscriber, error) {
	sub := registry.NewSubscriber(ctx, meta, s.bufferSize)
	if err := s.hub.Register(sub); err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}

// [UNSUBSCRIBE] TRIGGERS CLEANUP
func (s *DeliveryService) Unsubscribe(id uuid.UUID) {
	s.hub.Unregister(id)
}

func (s *DeliveryService) Status() model.RelayStatus {
	return model.RelayStatus{
		UpstreamConnected: s.upstream.IsConnected(),
		UpstreamState:     s.upstream.State().String(),
		ReconnectAttempts: s.upstream.Attempts(),
		Subscribers:       s.hub.Len(),
	}
}
