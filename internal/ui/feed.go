// Package ui renders the relay's live event stream in a terminal.
package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
)

const maxLines = 200

// Feed is the state behind both views: connection status, running totals
// and the most recent event lines. It is safe for concurrent use.
type Feed struct {
	mu        sync.Mutex
	now       func() time.Time
	connected bool
	lastErr   string
	payments  int
	totalSat  int64
	lines     []string
	appended  int
	changed   chan struct{}
}

func NewFeed() *Feed {
	return &Feed{now: time.Now, changed: make(chan struct{}, 1)}
}

// Changed receives a value after every update; bursts coalesce.
func (f *Feed) Changed() <-chan struct{} { return f.changed }

func (f *Feed) Connected() {
	f.update(func() {
		f.connected = true
		f.lastErr = ""
		f.appendLine(f.stamp() + " connected to relay")
	})
}

func (f *Feed) Disconnected(err error) {
	f.update(func() {
		f.connected = false
		if err != nil {
			f.lastErr = err.Error()
		}
		f.appendLine(f.stamp() + " disconnected, retrying")
	})
}

func (f *Feed) Event(ev event.Event) {
	f.update(func() {
		if p, ok := ev.(event.PaymentReceived); ok {
			f.payments++
			f.totalSat += p.AmountSat
		}
		f.appendLine(f.stamp() + " " + Describe(ev))
	})
}

// Summary is the one-line status header.
func (f *Feed) Summary() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	state := "connected"
	if !f.connected {
		state = "disconnected"
		if f.lastErr != "" {
			state += " (" + f.lastErr + ")"
		}
	}
	return fmt.Sprintf("relay: %s | payments: %d | received: %d sat", state, f.payments, f.totalSat)
}

// Lines returns the retained event lines, oldest first.
func (f *Feed) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

// Since returns the retained lines appended after mark, plus the mark to
// pass next time. Lines that aged out of the window are skipped.
func (f *Feed) Since(mark int) ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := mark - (f.appended - len(f.lines))
	start = max(start, 0)
	if start > len(f.lines) {
		start = len(f.lines)
	}
	return append([]string(nil), f.lines[start:]...), f.appended
}

func (f *Feed) update(fn func()) {
	f.mu.Lock()
	fn()
	f.mu.Unlock()

	select {
	case f.changed <- struct{}{}:
	default:
	}
}

func (f *Feed) appendLine(line string) {
	f.lines = append(f.lines, line)
	f.appended++
	if over := len(f.lines) - maxLines; over > 0 {
		f.lines = append(f.lines[:0], f.lines[over:]...)
	}
}

func (f *Feed) stamp() string { return f.now().Format(time.TimeOnly) }

// Describe renders one event as a human readable line.
func Describe(ev event.Event) string {
	switch e := ev.(type) {
	case event.PaymentReceived:
		s := fmt.Sprintf("payment received: %d sat", e.AmountSat)
		if e.PaymentHash != "" {
			s += " hash=" + short(e.PaymentHash)
		}
		if e.PayerNote != "" {
			s += fmt.Sprintf(" note=%q", e.PayerNote)
		}
		return s
	case event.ChannelOpened:
		return "channel opened: " + e.ChannelID
	case event.ChannelClosed:
		s := "channel closed: " + e.ChannelID
		if e.Reason != "" {
			s += " (" + e.Reason + ")"
		}
		return s
	case event.Unknown:
		if e.Type == "" {
			return "untyped event"
		}
		return "event: " + e.Type
	default:
		return "event: " + ev.Kind().String()
	}
}

func short(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12] + "…"
}
