package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
)

// Interface guard
var _ Subscriber = (*connect)(nil)

// [SUBSCRIBER] THE HUB'S VIEW OF ONE DOWNSTREAM CONNECTION
// The transport handler owns the socket; the Hub only pushes frames into the
// outbound buffer and closes the subscriber when a push fails.
type Subscriber interface {
	GetID() uuid.UUID
	Metadata() ConnectMetadata
	// Send enqueues a frame without blocking. It fails with model.ErrSubscriberClosed
	// or model.ErrBackpressure.
	Send(frame []byte) error
	Recv() <-chan []byte
	// Done is closed once the subscriber is closed.
	Done() <-chan struct{}
	Dropped() uint64
	Close()
}

// [METADATA] EXPORTED FOR TRANSPORT AND LOGGING LAYERS
type ConnectMetadata struct {
	Transport string // "ws" or "lp"
	RemoteIP  string
	UserAgent string
}

type connect struct {
	id        uuid.UUID
	metadata  ConnectMetadata
	createdAt time.Time
	ctx       context.Context
	cancelFn  context.CancelFunc
	sendCh    chan []byte
	closeOnce sync.Once     // [PROTECTION]
	dropped   atomic.Uint64 // [ATOMIC_FIELD]
}

// NewSubscriber creates a subscriber bound to ctx: cancelling ctx closes it.
func NewSubscriber(ctx context.Context, meta ConnectMetadata, bufferSize int) Subscriber {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	childCtx, cancel := context.WithCancel(ctx)
	return &connect{
		id:        uuid.New(),
		metadata:  meta,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan []byte, bufferSize),
	}
}

func (c *connect) GetID() uuid.UUID          { return c.id }
func (c *connect) Metadata() ConnectMetadata { return c.metadata }
func (c *connect) Recv() <-chan []byte       { return c.sendCh }
func (c *connect) Done() <-chan struct{}     { return c.ctx.Done() }
func (c *connect) Dropped() uint64           { return c.dropped.Load() }

func (c *connect) Send(frame []byte) error {
	// 1. [LIFECYCLE_GATE] A dead transport never accepts frames, even if the
	// buffer still has room.
	select {
	case <-c.ctx.Done():
		return model.ErrSubscriberClosed
	default:
	}

	// 2. [PRIMARY_DELIVERY] Non-blocking enqueue. A full buffer is a slow
	// consumer and is reported instead of waited on.
	select {
	case c.sendCh <- frame:
		return nil
	default:
		c.dropped.Add(1)
		return model.ErrBackpressure
	}
}

// Close cancels the subscriber. The outbound channel is never closed so a
// concurrent Send cannot panic; readers select on Done.
func (c *connect) Close() {
	c.closeOnce.Do(c.cancelFn)
}
