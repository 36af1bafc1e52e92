package ui

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, frame string) event.Event {
	t.Helper()
	ev, err := event.Decode([]byte(frame))
	require.NoError(t, err)
	return ev
}

func fixedFeed() *Feed {
	f := NewFeed()
	f.now = func() time.Time { return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC) }
	return f
}

func TestDescribe(t *testing.T) {
	hash := strings.Repeat("ab", 32)
	cases := map[string]string{
		`{"type":"payment_received","amountSat":21,"paymentHash":"` + hash + `","payerNote":"hi"}`: `payment received: 21 sat hash=abababababab… note="hi"`,
		`{"type":"channel_opened","channelId":"c1"}`:                    "channel opened: c1",
		`{"type":"channel_closed","channelId":"c2","reason":"mutual"}`: "channel closed: c2 (mutual)",
		`{"type":"liquidity_purchased"}`:                                "event: liquidity_purchased",
	}
	for frame, want := range cases {
		assert.Equal(t, want, Describe(decode(t, frame)), frame)
	}
}

func TestFeedTotalsAndStatus(t *testing.T) {
	f := fixedFeed()
	assert.Contains(t, f.Summary(), "relay: disconnected")

	f.Connected()
	f.Event(decode(t, `{"type":"payment_received","amountSat":100}`))
	f.Event(decode(t, `{"type":"channel_opened","channelId":"c"}`))
	f.Event(decode(t, `{"type":"payment_received","amountSat":50}`))

	assert.Equal(t, "relay: connected | payments: 2 | received: 150 sat", f.Summary())
	assert.Equal(t, "15:04:05 connected to relay", f.Lines()[0])
	assert.Len(t, f.Lines(), 4)

	f.Disconnected(errors.New("connection refused"))
	assert.Contains(t, f.Summary(), "disconnected (connection refused)")
}

func TestFeedKeepsRecentLines(t *testing.T) {
	f := fixedFeed()
	for i := range maxLines + 10 {
		f.Event(decode(t, `{"type":"payment_received","amountSat":`+strconv.Itoa(i)+`}`))
	}

	lines := f.Lines()
	require.Len(t, lines, maxLines)
	assert.True(t, strings.HasSuffix(lines[0], "payment received: 10 sat"))

	got, mark := f.Since(0)
	assert.Len(t, got, maxLines)
	assert.Equal(t, maxLines+10, mark)

	f.Event(decode(t, `{"type":"channel_opened","channelId":"z"}`))
	got, _ = f.Since(mark)
	assert.Equal(t, []string{"15:04:05 channel opened: z"}, got)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPlainPrintsEachLineOnce(t *testing.T) {
	f := fixedFeed()
	var out syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewPlain(&out).Run(ctx, f) }()

	f.Connected()
	require.Eventually(t, func() bool { return strings.Count(out.String(), "\n") == 1 }, time.Second, 5*time.Millisecond)

	f.Event(decode(t, `{"type":"payment_received","amountSat":7}`))
	require.Eventually(t, func() bool { return strings.Count(out.String(), "\n") == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, "15:04:05 connected to relay\n15:04:05 payment received: 7 sat\n", out.String())
}
