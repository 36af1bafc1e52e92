/*
Package listener is the downstream side of the relay: a client of the /ws
endpoint that decodes every frame and hands it to the caller's handlers.

It reconnects exactly like the upstream feed does, so a dashboard that loses
the relay keeps retrying until it is stopped.
*/
package listener

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
	"github.com/phoenixd-dashboard/dashboard/internal/metrics"
	"github.com/phoenixd-dashboard/dashboard/internal/reconnect"
)

const (
	Name = "listener"

	// DefaultPongWait outlasts the relay's default ping interval twice over.
	DefaultPongWait  = 60 * time.Second
	controlWriteWait = 5 * time.Second
)

// Handlers are called from the listener's read loop. Any of them may be nil.
type Handlers struct {
	OnConnect    func()
	OnDisconnect func(err error)
	OnEvent      func(ev event.Event)
}

type Listener struct {
	endpoint   string
	token      string
	handlers   Handlers
	dialer     *websocket.Dialer
	logger     *slog.Logger
	clock      clockwork.Clock
	policy     reconnect.Policy
	pongWait   time.Duration
	supervisor *reconnect.Supervisor
}

type Option func(*Listener)

// WithToken sends a bearer token on every dial.
func WithToken(token string) Option {
	return func(l *Listener) { l.token = token }
}

func WithClock(c clockwork.Clock) Option {
	return func(l *Listener) { l.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithPolicy(p reconnect.Policy) Option {
	return func(l *Listener) { l.policy = p }
}

// WithPongWait sets how long the connection may stay silent, pings
// included, before it is dropped and redialed. Zero disables the deadline.
func WithPongWait(d time.Duration) Option {
	return func(l *Listener) { l.pongWait = d }
}

func New(endpoint string, handlers Handlers, opts ...Option) *Listener {
	l := &Listener{
		endpoint: endpoint,
		handlers: handlers,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger:   slog.Default(),
		pongWait: DefaultPongWait,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.supervisor = reconnect.New(Name, reconnect.DialerFunc(l.dial),
		reconnect.WithLogger(l.logger),
		reconnect.WithClock(l.clock),
		reconnect.WithPolicy(l.policy),
		reconnect.OnConnect(l.connected),
		reconnect.OnDisconnect(l.disconnected),
	)
	return l
}

// Start begins connecting in the background.
func (l *Listener) Start(ctx context.Context) error { return l.supervisor.Start(ctx) }

// Stop closes the connection and cancels any pending reconnect. No handler
// is called once Stop returns.
func (l *Listener) Stop(ctx context.Context) error { return l.supervisor.Shutdown(ctx) }

func (l *Listener) IsConnected() bool { return l.supervisor.IsConnected() }

func (l *Listener) State() model.ConnectionState { return l.supervisor.State() }

// Done is closed once the listener has stopped for good.
func (l *Listener) Done() <-chan struct{} { return l.supervisor.Done() }

func (l *Listener) dial(ctx context.Context) (reconnect.Session, error) {
	header := http.Header{}
	if l.token != "" {
		header.Set("Authorization", "Bearer "+l.token)
	}
	conn, resp, err := l.dialer.DialContext(ctx, l.endpoint, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			l.logger.Error("[LISTENER] relay rejected the token")
		}
		return nil, &model.ConnectionError{Endpoint: l.endpoint, Op: "dial", Err: err}
	}
	return &session{listener: l, conn: conn}, nil
}

func (l *Listener) connected() {
	if l.handlers.OnConnect != nil {
		l.handlers.OnConnect()
	}
}

func (l *Listener) disconnected(err error) {
	if l.handlers.OnDisconnect != nil {
		l.handlers.OnDisconnect(err)
	}
}

func (l *Listener) deliver(ev event.Event) {
	if l.handlers.OnEvent == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("[LISTENER] handler panic recovered",
				slog.String("kind", ev.Kind().String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	l.handlers.OnEvent(ev)
}

type session struct {
	listener  *Listener
	conn      *websocket.Conn
	closeOnce sync.Once
}

// Serve reads until the connection fails or ctx ends. The relay pings
// periodically; any frame or ping pushes the read deadline forward, so a
// relay that vanishes without closing is noticed after the pong wait.
func (s *session) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.extendDeadline()
	s.conn.SetPingHandler(func(data string) error {
		s.extendDeadline()
		_ = s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(controlWriteWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &model.ConnectionError{Endpoint: s.listener.endpoint, Op: "read", Err: err}
		}
		s.extendDeadline()

		ev, err := event.Decode(data)
		if err != nil {
			metrics.IncParseError(Name)
			s.listener.logger.Warn("[LISTENER] discarding malformed frame", slog.Any("err", err))
			continue
		}
		s.listener.deliver(ev)
	}
}

func (s *session) extendDeadline() {
	if wait := s.listener.pongWait; wait > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(wait))
	}
}

func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}
