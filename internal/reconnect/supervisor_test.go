package reconnect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errRefused = errors.New("connection refused")
	errDropped = errors.New("stream dropped")
)

type fakeSession struct {
	serveErr  chan error
	closed    chan struct{}
	closeOnce sync.Once
	served    atomic.Bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{serveErr: make(chan error, 1), closed: make(chan struct{})}
}

func (f *fakeSession) Serve(ctx context.Context) error {
	f.served.Store(true)
	select {
	case err := <-f.serveErr:
		return err
	case <-f.closed:
		return errors.New("session closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSession) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeSession) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

type dialResult struct {
	sess Session
	err  error
}

// fakeDialer hands every dial to the test, which answers it.
type fakeDialer struct {
	calls chan chan dialResult
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{calls: make(chan chan dialResult)}
}

func (d *fakeDialer) Dial(ctx context.Context) (Session, error) {
	reply := make(chan dialResult, 1)
	select {
	case d.calls <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.sess, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDialer) expectDial(t *testing.T) chan<- dialResult {
	t.Helper()
	select {
	case reply := <-d.calls:
		return reply
	case <-time.After(time.Second):
		t.Fatal("expected a dial")
		return nil
	}
}

func (d *fakeDialer) expectNoDial(t *testing.T) {
	t.Helper()
	select {
	case <-d.calls:
		t.Fatal("unexpected dial")
	case <-time.After(50 * time.Millisecond):
	}
}

func startSupervisor(t *testing.T, d Dialer, opts ...Option) (*Supervisor, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	sup := New("test", d, append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sup.Shutdown(ctx)
	})
	return sup, clock
}

func waitForTimer(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
}

func TestRetryWaitsForFullDelay(t *testing.T) {
	d := newFakeDialer()
	sup, clock := startSupervisor(t, d, WithPolicy(Fixed(5*time.Second)))

	d.expectDial(t) <- dialResult{err: errRefused}
	waitForTimer(t, clock)

	assert.Equal(t, model.StateDisconnected, sup.State())
	assert.Equal(t, 1, sup.Attempts())

	clock.Advance(5*time.Second - time.Millisecond)
	d.expectNoDial(t)

	clock.Advance(time.Millisecond)
	d.expectDial(t) <- dialResult{err: errRefused}
	waitForTimer(t, clock)
	assert.Equal(t, 2, sup.Attempts())
}

func TestSuccessfulDialResetsAttempts(t *testing.T) {
	var connects atomic.Int32
	disconnects := make(chan error, 4)

	d := newFakeDialer()
	sup, clock := startSupervisor(t, d,
		WithPolicy(Fixed(time.Second)),
		OnConnect(func() { connects.Add(1) }),
		OnDisconnect(func(err error) { disconnects <- err }),
	)

	for range 2 {
		d.expectDial(t) <- dialResult{err: errRefused}
		waitForTimer(t, clock)
		clock.Advance(time.Second)
	}
	assert.ErrorIs(t, <-disconnects, errRefused)
	assert.ErrorIs(t, <-disconnects, errRefused)

	sess := newFakeSession()
	d.expectDial(t) <- dialResult{sess: sess}

	require.Eventually(t, sup.IsConnected, time.Second, 5*time.Millisecond)
	assert.Zero(t, sup.Attempts())
	assert.Equal(t, int32(1), connects.Load())

	sess.serveErr <- errDropped
	waitForTimer(t, clock)

	assert.ErrorIs(t, <-disconnects, errDropped)
	assert.Equal(t, 1, sup.Attempts())
	assert.False(t, sup.IsConnected())
	assert.True(t, sess.isClosed())
}

func TestBackoffRestartsAfterSuccessfulConnect(t *testing.T) {
	d := newFakeDialer()
	sup, clock := startSupervisor(t, d,
		WithPolicy(Exponential{Initial: time.Second, Max: time.Minute, Multiplier: 2}),
	)

	// two failures grow the delay to 2s
	d.expectDial(t) <- dialResult{err: errRefused}
	waitForTimer(t, clock)
	clock.Advance(time.Second)
	d.expectDial(t) <- dialResult{err: errRefused}
	waitForTimer(t, clock)
	clock.Advance(2 * time.Second)

	sess := newFakeSession()
	d.expectDial(t) <- dialResult{sess: sess}
	require.Eventually(t, sup.IsConnected, time.Second, 5*time.Millisecond)

	sess.serveErr <- errDropped
	waitForTimer(t, clock)
	assert.Equal(t, 1, sup.Attempts())

	// the drop waits the initial delay again, not the 4s a third failure would
	clock.Advance(time.Second - time.Millisecond)
	d.expectNoDial(t)
	clock.Advance(time.Millisecond)
	d.expectDial(t) <- dialResult{err: errRefused}
	waitForTimer(t, clock)
}

func TestShutdownWhileConnected(t *testing.T) {
	d := newFakeDialer()
	sup, clock := startSupervisor(t, d)

	sess := newFakeSession()
	d.expectDial(t) <- dialResult{sess: sess}
	require.Eventually(t, sup.IsConnected, time.Second, 5*time.Millisecond)

	require.NoError(t, sup.Shutdown(context.Background()))

	assert.True(t, sess.isClosed())
	assert.Equal(t, model.StateShutDown, sup.State())

	clock.Advance(10 * DefaultDelay)
	d.expectNoDial(t)
}

func TestShutdownCancelsPendingReconnect(t *testing.T) {
	d := newFakeDialer()
	sup, clock := startSupervisor(t, d)

	d.expectDial(t) <- dialResult{err: errRefused}
	waitForTimer(t, clock)

	require.NoError(t, sup.Shutdown(context.Background()))
	clock.Advance(10 * DefaultDelay)

	d.expectNoDial(t)
	assert.Equal(t, model.StateShutDown, sup.State())
	<-sup.Done()
}

func TestSessionDialedDuringShutdownIsClosed(t *testing.T) {
	dialing := make(chan struct{})
	release := make(chan struct{})
	sess := newFakeSession()

	// the dial ignores cancellation, as a slow handshake would
	dialer := DialerFunc(func(context.Context) (Session, error) {
		close(dialing)
		<-release
		return sess, nil
	})
	sup, _ := startSupervisor(t, dialer)
	<-dialing

	stopped := make(chan error, 1)
	go func() { stopped <- sup.Shutdown(context.Background()) }()

	require.Eventually(t, func() bool {
		sup.mu.Lock()
		defer sup.mu.Unlock()
		return sup.stopped
	}, time.Second, time.Millisecond)
	close(release)

	require.NoError(t, <-stopped)
	assert.True(t, sess.isClosed())
	assert.False(t, sess.served.Load())
	assert.Equal(t, model.StateShutDown, sup.State())
}

func TestShutdownHonoursContext(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	dialing := make(chan struct{})
	dialer := DialerFunc(func(context.Context) (Session, error) {
		close(dialing)
		<-release
		return nil, errRefused
	})
	sup := New("stuck", dialer, WithClock(clockwork.NewFakeClock()))
	require.NoError(t, sup.Start(context.Background()))
	<-dialing

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sup.Shutdown(ctx), context.DeadlineExceeded)
}

func TestStartErrors(t *testing.T) {
	d := newFakeDialer()
	sup, _ := startSupervisor(t, d)

	assert.ErrorIs(t, sup.Start(context.Background()), model.ErrAlreadyStarted)

	require.NoError(t, sup.Shutdown(context.Background()))
	assert.ErrorIs(t, sup.Start(context.Background()), model.ErrShutDown)
}

func TestShutdownBeforeStart(t *testing.T) {
	sup := New("idle", newFakeDialer())

	require.NoError(t, sup.Shutdown(context.Background()))
	require.NoError(t, sup.Shutdown(context.Background()))

	assert.Equal(t, model.StateShutDown, sup.State())
	assert.ErrorIs(t, sup.Start(context.Background()), model.ErrShutDown)
}

func TestParentContextEndsLoop(t *testing.T) {
	d := newFakeDialer()
	sup := New("parent", d, WithClock(clockwork.NewFakeClock()))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sup.Start(ctx))

	d.expectDial(t)
	cancel()

	select {
	case <-sup.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit")
	}
	assert.Equal(t, model.StateShutDown, sup.State())
}
