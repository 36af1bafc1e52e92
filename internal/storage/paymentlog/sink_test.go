package paymentlog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePayment(t *testing.T, frame string) event.PaymentReceived {
	t.Helper()
	ev, err := event.Decode([]byte(frame))
	require.NoError(t, err)
	p, ok := ev.(event.PaymentReceived)
	require.True(t, ok)
	return p
}

func TestSQLiteSinkWriteAndRecent(t *testing.T) {
	sink, err := NewSQLSink("sqlite://" + filepath.Join(t.TempDir(), "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, sink.Close()) })

	ctx := context.Background()
	hash := strings.Repeat("b", 64)
	first := decodePayment(t, `{"type":"payment_received","amountSat":1000,"paymentHash":"`+hash+`","timestamp":1700000000000}`)
	second := decodePayment(t, `{"type":"payment_received","amountSat":21}`)

	require.NoError(t, sink.Write(ctx, FromPayment(first, time.Now())))
	require.NoError(t, sink.Write(ctx, FromPayment(second, time.Now())))

	recs, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// newest first
	assert.Equal(t, int64(21), recs[0].AmountSat)
	assert.Empty(t, recs[0].PaymentHash)

	got := recs[1]
	assert.Equal(t, "payment_received", got.Kind)
	assert.Equal(t, hash, got.PaymentHash)
	assert.Equal(t, int64(1000), got.AmountSat)
	assert.Equal(t, StatusReceived, got.Status)
	assert.JSONEq(t, string(first.Raw()), string(got.RawEvent))
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), got.OccurredAt)
}

func TestRecentClampsLimit(t *testing.T) {
	sink, err := NewSQLSink(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	ctx := context.Background()
	p := decodePayment(t, `{"type":"payment_received","amountSat":1}`)
	for range 3 {
		require.NoError(t, sink.Write(ctx, FromPayment(p, time.Now())))
	}

	recs, err := sink.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	recs, err = sink.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestSchemaSurvivesReopen(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "log.db")
	ctx := context.Background()

	sink, err := NewSQLSink(dsn)
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, FromPayment(decodePayment(t, `{"type":"payment_received","amountSat":5}`), time.Now())))
	require.NoError(t, sink.Close())

	sink, err = NewSQLSink(dsn)
	require.NoError(t, err)
	defer sink.Close()

	recs, err := sink.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestOpenWithoutDSNIsDisabled(t *testing.T) {
	sink, err := Open("  ")
	require.NoError(t, err)

	assert.False(t, Enabled(sink))
	assert.ErrorIs(t, sink.Write(context.Background(), Record{}), ErrDisabled)
	_, err = sink.Recent(context.Background(), 1)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, sink.Close())
}

func TestFromPaymentFallsBackToReceiveTime(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := FromPayment(decodePayment(t, `{"type":"payment_received","amountSat":9}`), now)

	assert.Equal(t, now, rec.OccurredAt)
}
