package reconnect

import (
	"log/slog"

	"github.com/jonboulle/clockwork"
)

type Option func(*Supervisor)

func WithPolicy(p Policy) Option {
	return func(s *Supervisor) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithClock replaces the real clock; tests pass a clockwork.FakeClock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Supervisor) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// OnConnect is called from the loop goroutine after every successful dial.
func OnConnect(fn func()) Option {
	return func(s *Supervisor) { s.onConnect = fn }
}

// OnDisconnect is called from the loop goroutine with the error that ended
// the dial or the session.
func OnDisconnect(fn func(error)) Option {
	return func(s *Supervisor) { s.onDisconnect = fn }
}
