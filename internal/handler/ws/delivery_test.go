package ws

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/phoenixd-dashboard/dashboard/config"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/registry"
	"github.com/phoenixd-dashboard/dashboard/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticUpstream struct{}

func (staticUpstream) IsConnected() bool            { return true }
func (staticUpstream) State() model.ConnectionState { return model.StateConnected }
func (staticUpstream) Attempts() int                { return 0 }

func newServer(t *testing.T, mutate func(*config.Config)) (*registry.Hub, *httptest.Server) {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{WSPath: "/ws"},
		Hub:    config.HubConfig{BufferSize: 8},
	}
	if mutate != nil {
		mutate(cfg)
	}

	hub := registry.NewHub()
	deliverer := service.NewDeliveryService(hub, staticUpstream{}, cfg.Hub.BufferSize)
	r := chi.NewRouter()
	NewWSHandler(slog.Default(), deliverer, cfg).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, path string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	return websocket.DefaultDialer.Dial(u, header)
}

func decode(t *testing.T, frame string) event.Event {
	t.Helper()
	ev, err := event.Decode([]byte(frame))
	require.NoError(t, err)
	return ev
}

func TestFramesAreForwardedUnmodified(t *testing.T) {
	hub, srv := newServer(t, nil)

	conn, _, err := dial(t, srv, "/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	frames := []string{
		`{"type":"payment_received","amountSat":1000,"paymentHash":"` + strings.Repeat("e", 64) + `"}`,
		`{"type":"channel_opened",  "channelId":"c"}`,
		`{"type":"something_new","x":1}`,
	}
	for _, f := range frames {
		require.Equal(t, 1, hub.Broadcast(decode(t, f)))
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range frames {
		typ, got, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, typ)
		assert.Equal(t, want, string(got))
	}
}

func TestClientCloseUnregisters(t *testing.T) {
	hub, srv := newServer(t, nil)

	conn, _, err := dial(t, srv, "/ws", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHubShutdownClosesConnection(t *testing.T) {
	hub, srv := newServer(t, nil)

	conn, _, err := dial(t, srv, "/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	hub.Shutdown()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestSubscribeAfterShutdownIsRefused(t *testing.T) {
	hub, srv := newServer(t, nil)
	hub.Shutdown()

	conn, _, err := dial(t, srv, "/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "got %v", err)
}

func TestTokenRequiredWhenConfigured(t *testing.T) {
	_, srv := newServer(t, func(c *config.Config) { c.Server.WSToken = "sesame" })

	_, resp, err := dial(t, srv, "/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := dial(t, srv, "/ws?token=sesame", nil)
	require.NoError(t, err)
	_ = conn.Close()

	conn, _, err = dial(t, srv, "/ws", http.Header{"Authorization": {"Bearer sesame"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestOriginChecker(t *testing.T) {
	check := OriginChecker([]string{"https://dash.example.com/"})

	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, check(req("https://DASH.example.com")))
	assert.True(t, check(req("")))
	assert.False(t, check(req("https://evil.example.com")))
	assert.False(t, check(req("http://dash.example.com")))

	assert.True(t, OriginChecker(nil)(req("https://anything.example")))
	assert.True(t, OriginChecker([]string{"*"})(req("https://anything.example")))
}

func TestRejectedOrigin(t *testing.T) {
	_, srv := newServer(t, func(c *config.Config) { c.Server.AllowedOrigins = []string{"https://dash.example.com"} })

	_, resp, err := dial(t, srv, "/ws", http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
