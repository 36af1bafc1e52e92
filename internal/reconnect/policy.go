package reconnect

import (
	"math"
	"time"

	"github.com/phoenixd-dashboard/dashboard/config"
)

const (
	DefaultDelay    = config.DefaultReconnectDelay
	DefaultMaxDelay = 60 * time.Second
)

// Policy decides how long to wait before the given reconnect attempt.
// attempt counts consecutive failures since the last successful connection
// and starts at 1.
type Policy interface {
	Delay(attempt int) time.Duration
}

type fixed time.Duration

// Fixed waits the same delay before every attempt. A non-positive delay
// falls back to DefaultDelay so a retry is never immediate.
func Fixed(d time.Duration) Policy {
	if d <= 0 {
		d = DefaultDelay
	}
	return fixed(d)
}

func (f fixed) Delay(int) time.Duration { return time.Duration(f) }

// Exponential grows the delay by Multiplier per attempt and caps it at Max.
// Zero fields take DefaultDelay, DefaultMaxDelay and 2.
type Exponential struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func (e Exponential) Delay(attempt int) time.Duration {
	initial, maxDelay, mult := e.Initial, e.Max, e.Multiplier
	if initial <= 0 {
		initial = DefaultDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if maxDelay < initial {
		maxDelay = initial
	}
	if mult < 1 {
		mult = 2
	}
	if attempt < 1 {
		attempt = 1
	}

	d := float64(initial) * math.Pow(mult, float64(attempt-1))
	if d >= float64(maxDelay) || math.IsInf(d, 0) || math.IsNaN(d) {
		return maxDelay
	}
	return time.Duration(d)
}

// FromConfig returns a fixed policy unless a max delay is configured, in which
// case the delay backs off exponentially up to it.
func FromConfig(cfg config.ReconnectConfig) Policy {
	if cfg.MaxDelay <= 0 {
		return Fixed(cfg.Delay)
	}
	return Exponential{Initial: cfg.Delay, Max: cfg.MaxDelay, Multiplier: cfg.Multiplier}
}
