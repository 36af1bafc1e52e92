package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/phoenixd-dashboard/dashboard/config"
	httpsrv "github.com/phoenixd-dashboard/dashboard/infra/server/http"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/registry"
	"github.com/phoenixd-dashboard/dashboard/internal/service"
)

const closeGrace = time.Second

// WSHandler serves the downstream event stream. Every frame relayed from the
// node is written unmodified as one text message; the server never expects
// anything from the client beyond pongs.
type WSHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	upgrader  websocket.Upgrader
	path      string
	token     string
	cfg       config.HubConfig
}

func NewWSHandler(logger *slog.Logger, deliverer service.Deliverer, cfg *config.Config) *WSHandler {
	return &WSHandler{
		logger:    logger,
		deliverer: deliverer,
		upgrader: websocket.Upgrader{
			CheckOrigin: OriginChecker(cfg.Server.AllowedOrigins),
		},
		path:  cfg.Server.WSPath,
		token: cfg.Server.WSToken,
		cfg:   withDefaults(cfg.Hub),
	}
}

func withDefaults(c config.HubConfig) config.HubConfig {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	// pings must go out before the peer's pong deadline passes
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	return c
}

func (h *WSHandler) Register(r chi.Router) {
	r.With(httpsrv.TokenAuth(h.token)).Get(h.path, h.ServeHTTP)
}

// OriginChecker accepts any origin when allowed is empty or contains "*".
// Otherwise the Origin header must match an entry exactly, ignoring case.
// Requests without an Origin header are not from a browser and are accepted.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. UPGRADE TO WEBSOCKET
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("[WS] upgrade failed", slog.Any("err", err), slog.String("remote", r.RemoteAddr))
		return
	}
	defer conn.Close()

	// 2. SUBSCRIBE VIA THE DELIVERY SERVICE
	sub, err := h.deliverer.Subscribe(r.Context(), registry.ConnectMetadata{
		Transport: "ws",
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.Warn("[WS] subscribe rejected", slog.Any("err", err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"),
			time.Now().Add(closeGrace))
		return
	}
	defer h.deliverer.Unsubscribe(sub.GetID())
	defer sub.Close()

	log := h.logger.With(slog.String("conn_id", sub.GetID().String()))
	log.Info("[WS] opened", slog.String("remote", r.RemoteAddr))

	// 3. PUMPS: reads only detect liveness, writes forward frames
	go h.readPump(conn, sub, log)
	h.writePump(conn, sub, log)

	log.Info("[WS] closed", slog.Uint64("dropped", sub.Dropped()))
}

func (h *WSHandler) readPump(conn *websocket.Conn, sub registry.Subscriber, log *slog.Logger) {
	defer sub.Close()

	conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("[WS] read ended", slog.Any("err", err))
			}
			return
		}
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, sub registry.Subscriber, log *slog.Logger) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(closeGrace))
			return

		case frame := <-sub.Recv():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn("[WS] send failed", slog.Any("err", err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				log.Debug("[WS] ping failed", slog.Any("err", err))
				return
			}
		}
	}
}
