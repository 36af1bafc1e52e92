package phoenixd

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
	"github.com/phoenixd-dashboard/dashboard/internal/metrics"
	"github.com/phoenixd-dashboard/dashboard/internal/reconnect"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadLimit        = 1 << 20
	DefaultPingInterval     = 30 * time.Second
	DefaultPongWait         = 60 * time.Second
	controlWriteWait        = 5 * time.Second
)

// EventHandler consumes one classified event. Handlers run synchronously on
// the read loop, so they must not block.
type EventHandler func(ctx context.Context, ev event.Event)

// Interface guard
var _ reconnect.Dialer = (*Feed)(nil)

// Feed is the node's push notification stream. It dials one authenticated
// websocket per Dial call; reconnecting is left to a reconnect.Supervisor.
type Feed struct {
	endpoint string
	password string
	dialer   *websocket.Dialer
	logger   *slog.Logger

	// a node that stops answering pings within pongWait is treated as gone
	pingInterval time.Duration
	pongWait     time.Duration

	mu       sync.RWMutex
	handlers []EventHandler
}

type FeedOption func(*Feed)

func WithDialer(d *websocket.Dialer) FeedOption {
	return func(f *Feed) {
		if d != nil {
			f.dialer = d
		}
	}
}

func WithFeedLogger(l *slog.Logger) FeedOption {
	return func(f *Feed) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithKeepalive sets how often the feed pings the node and how long it waits
// for any traffic before declaring the connection dead. A non-positive
// pongWait disables the read deadline.
func WithKeepalive(pingInterval, pongWait time.Duration) FeedOption {
	return func(f *Feed) {
		f.pingInterval = pingInterval
		f.pongWait = pongWait
	}
}

func NewFeed(endpoint, password string, opts ...FeedOption) *Feed {
	f := &Feed{
		endpoint: endpoint,
		password: password,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		logger:       slog.Default(),
		pingInterval: DefaultPingInterval,
		pongWait:     DefaultPongWait,
	}
	for _, opt := range opts {
		opt(f)
	}
	// pings must go out before the read deadline passes
	if f.pongWait > 0 && (f.pingInterval <= 0 || f.pingInterval >= f.pongWait) {
		f.pingInterval = f.pongWait * 9 / 10
	}
	return f
}

// Handle registers a handler. Handlers are called in registration order.
func (f *Feed) Handle(h EventHandler) {
	f.mu.Lock()
	f.handlers = append(f.handlers, h)
	f.mu.Unlock()
}

// BasicAuth is the Authorization header value the node expects: HTTP Basic
// with an empty user name.
func BasicAuth(password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+password))
}

func (f *Feed) Dial(ctx context.Context) (reconnect.Session, error) {
	header := http.Header{}
	header.Set("Authorization", BasicAuth(f.password))

	conn, resp, err := f.dialer.DialContext(ctx, f.endpoint, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, &model.ConnectionError{Endpoint: f.endpoint, Op: "dial", Err: err}
	}
	conn.SetReadLimit(defaultReadLimit)

	return &feedSession{feed: f, conn: conn}, nil
}

type feedSession struct {
	feed      *Feed
	conn      *websocket.Conn
	closeOnce sync.Once
}

// Serve reads frames until the connection fails, goes silent for longer
// than the pong wait, or ctx ends. Bad frames are logged and skipped; they
// never end the session.
func (s *feedSession) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	done := make(chan struct{})
	defer close(done)
	s.startKeepalive(done)

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &model.ConnectionError{Endpoint: s.feed.endpoint, Op: "read", Err: err}
		}
		s.extendDeadline()
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		ev, err := event.Decode(data)
		if err != nil {
			metrics.IncParseError("upstream")
			s.feed.logger.Warn("[FEED] discarding malformed frame", slog.Any("err", err))
			continue
		}

		metrics.IncEvent(ev.Kind().String())
		s.feed.dispatch(ctx, ev)
	}
}

// startKeepalive arms the read deadline, extends it on every pong or ping
// from the node and pings the node until done is closed.
func (s *feedSession) startKeepalive(done <-chan struct{}) {
	f := s.feed
	if f.pongWait <= 0 {
		return
	}
	s.extendDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendDeadline()
		return nil
	})
	s.conn.SetPingHandler(func(data string) error {
		s.extendDeadline()
		_ = s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(controlWriteWait))
		return nil
	})

	go func() {
		ticker := time.NewTicker(f.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteWait)); err != nil {
					f.logger.Debug("[FEED] ping failed", slog.Any("err", err))
					return
				}
			}
		}
	}()
}

func (s *feedSession) extendDeadline() {
	if s.feed.pongWait > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.feed.pongWait))
	}
}

func (s *feedSession) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}

func (f *Feed) dispatch(ctx context.Context, ev event.Event) {
	f.mu.RLock()
	handlers := f.handlers
	f.mu.RUnlock()

	for i, h := range handlers {
		f.safeCall(ctx, i, h, ev)
	}
}

func (f *Feed) safeCall(ctx context.Context, idx int, h EventHandler, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("[FEED] handler panic recovered",
				slog.Int("handler", idx),
				slog.String("kind", ev.Kind().String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	h(ctx, ev)
}
