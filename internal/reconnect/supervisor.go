/*
Package reconnect keeps a long-lived connection alive.

A Supervisor owns exactly one connection at a time and drives it through the
Disconnected -> Connecting -> Connected cycle until Shutdown. Connection faults
never escape it: every failure is logged, counted and followed by a delay from
the configured Policy before the next dial.
*/
package reconnect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
	"github.com/phoenixd-dashboard/dashboard/internal/metrics"
)

// Dialer establishes a single connection.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Session, error)

func (f DialerFunc) Dial(ctx context.Context) (Session, error) { return f(ctx) }

// Session is one established connection. Serve blocks until the connection
// fails or ctx ends. Close must be safe to call concurrently with Serve and
// more than once.
type Session interface {
	Serve(ctx context.Context) error
	Close() error
}

type Supervisor struct {
	name   string
	dialer Dialer
	policy Policy
	clock  clockwork.Clock
	logger *slog.Logger

	onConnect    func()
	onDisconnect func(error)

	state    atomic.Int32
	attempts atomic.Int64

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	session Session
	done    chan struct{}
}

func New(name string, dialer Dialer, opts ...Option) *Supervisor {
	s := &Supervisor{
		name:   name,
		dialer: dialer,
		policy: Fixed(DefaultDelay),
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("conn", name))
	s.state.Store(int32(model.StateDisconnected))
	return s
}

// Start launches the connect loop in the background. The loop runs until
// Shutdown is called or ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return model.ErrShutDown
	}
	if s.started {
		return model.ErrAlreadyStarted
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(loopCtx)
	return nil
}

// Shutdown stops the loop, cancels any pending reconnect, closes the live
// session and waits for the loop to exit or ctx to end. It is idempotent.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	alreadyStopped := s.stopped
	s.stopped = true
	started := s.started
	if s.cancel != nil {
		s.cancel()
	}
	sess := s.session
	s.mu.Unlock()

	if !started {
		s.setState(model.StateShutDown)
		return nil
	}
	if sess != nil {
		_ = sess.Close()
	}

	select {
	case <-s.done:
		if !alreadyStopped {
			s.logger.Info("[RECONNECT] shut down")
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown %s: %w", s.name, ctx.Err())
	}
}

// Done is closed once the loop has exited.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

func (s *Supervisor) IsConnected() bool { return s.State() == model.StateConnected }

func (s *Supervisor) State() model.ConnectionState {
	return model.ConnectionState(s.state.Load())
}

// Attempts is the number of consecutive failures since the last successful
// connection.
func (s *Supervisor) Attempts() int { return int(s.attempts.Load()) }

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)
	defer func() {
		s.setState(model.StateShutDown)
		metrics.SetConnected(s.name, false)
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(model.StateConnecting)
		err := s.connectAndServe(ctx)

		// [SHUTDOWN_GATE] a disconnect racing Shutdown never schedules another dial
		if ctx.Err() != nil {
			return
		}

		attempt := s.attempts.Add(1)
		s.setState(model.StateDisconnected)
		metrics.IncReconnect(s.name)
		if s.onDisconnect != nil {
			s.onDisconnect(err)
		}

		delay := s.policy.Delay(int(attempt))
		s.logger.Warn("[RECONNECT] connection lost, retrying",
			slog.Any("err", err),
			slog.Int64("attempt", attempt),
			slog.Duration("delay", delay),
		)

		timer := s.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

func (s *Supervisor) connectAndServe(ctx context.Context) error {
	sess, err := s.dialer.Dial(ctx)
	if err != nil {
		return err
	}
	if !s.attach(sess) {
		_ = sess.Close()
		return model.ErrShutDown
	}
	defer func() {
		s.detach()
		_ = sess.Close()
		metrics.SetConnected(s.name, false)
	}()

	s.attempts.Store(0)
	s.setState(model.StateConnected)
	metrics.SetConnected(s.name, true)
	s.logger.Info("[RECONNECT] connected")
	if s.onConnect != nil {
		s.onConnect()
	}

	return sess.Serve(ctx)
}

// attach publishes the live session so Shutdown can close it. A session
// dialed after Shutdown began is refused.
func (s *Supervisor) attach(sess Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.session = sess
	return true
}

func (s *Supervisor) detach() {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
}

func (s *Supervisor) setState(to model.ConnectionState) {
	for {
		from := model.ConnectionState(s.state.Load())
		if from == to {
			return
		}
		if !model.CanTransition(from, to) {
			s.logger.Error("[RECONNECT] invalid state transition",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			return
		}
		if s.state.CompareAndSwap(int32(from), int32(to)) {
			s.logger.Debug("[RECONNECT] state", slog.String("from", from.String()), slog.String("to", to.String()))
			return
		}
	}
}
