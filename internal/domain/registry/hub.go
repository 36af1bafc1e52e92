/*
Package registry holds the Broadcast Hub: the set of downstream subscribers
that receive every event relayed from the node daemon.

  - Snapshot Fan-out: Broadcast copies the registry under a read lock and then
    sends outside of it, so registration and removal never race the iteration.
  - Serialize Once: every subscriber receives the same frame bytes.
  - No Waiting: a subscriber whose buffer is full or whose transport is gone is
    removed on the spot; it never delays delivery to the others.
  - No History: a subscriber only sees events broadcast after it registered.
*/
package registry

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
	"github.com/phoenixd-dashboard/dashboard/internal/metrics"
)

const DefaultBufferSize = 64

// Hubber defines the gateway for subscriber management and event fan-out.
type Hubber interface {
	Broadcast(ev event.Event) int
	Register(sub Subscriber) error
	Unregister(id uuid.UUID)
	Len() int
	Shutdown()
}

type hubConfig struct {
	bufferSize int
}

// Hub implements a [FLAT_REGISTRY] of subscribers guarded by an RWMutex.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]Subscriber
	closed      bool

	config hubConfig
	logger *slog.Logger
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subscribers: make(map[uuid.UUID]Subscriber),
		config:      hubConfig{bufferSize: DefaultBufferSize},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// BufferSize is the outbound capacity new subscribers should be created with.
func (h *Hub) BufferSize() int { return h.config.bufferSize }

// Register adds a subscriber. It fails only after Shutdown.
func (h *Hub) Register(sub Subscriber) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return model.ErrShutDown
	}
	h.subscribers[sub.GetID()] = sub
	n := len(h.subscribers)
	h.mu.Unlock()

	metrics.SetSubscribers(n)
	h.logger.Debug("[HUB] subscriber registered",
		slog.String("conn_id", sub.GetID().String()),
		slog.String("transport", sub.Metadata().Transport),
		slog.Int("subscribers", n),
	)
	return nil
}

// Unregister removes a subscriber. Unknown ids are ignored.
func (h *Hub) Unregister(id uuid.UUID) {
	h.mu.Lock()
	_, ok := h.subscribers[id]
	delete(h.subscribers, id)
	n := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		metrics.SetSubscribers(n)
		h.logger.Debug("[HUB] subscriber unregistered", slog.String("conn_id", id.String()), slog.Int("subscribers", n))
	}
}

// Broadcast delivers the event's frame to every registered subscriber and
// returns the number of successful sends. Failed subscribers are removed.
func (h *Hub) Broadcast(ev event.Event) int {
	frame := ev.Raw()

	h.mu.RLock()
	snapshot := make([]Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range snapshot {
		if err := sub.Send(frame); err != nil {
			h.drop(sub, &model.SendError{SubscriberID: sub.GetID(), Err: err})
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) drop(sub Subscriber, err *model.SendError) {
	h.Unregister(sub.GetID())
	sub.Close()
	metrics.IncSendFailure()
	h.logger.Warn("[HUB] subscriber dropped",
		slog.String("conn_id", sub.GetID().String()),
		slog.Any("err", err),
	)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Shutdown closes every subscriber and refuses new registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	subs := h.subscribers
	h.subscribers = make(map[uuid.UUID]Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	metrics.SetSubscribers(0)
	h.logger.Info("[HUB] shut down", slog.Int("closed_subscribers", len(subs)))
}
