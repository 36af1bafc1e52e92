package lp

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phoenixd-dashboard/dashboard/config"
	httpsrv "github.com/phoenixd-dashboard/dashboard/infra/server/http"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/registry"
	lpmarshaller "github.com/phoenixd-dashboard/dashboard/internal/handler/marshaller/lp"
	"github.com/phoenixd-dashboard/dashboard/internal/service"
)

const (
	PollPath = "/api/events/poll"

	defaultPollTimeout = 30 * time.Second
	maxBatch           = 16
)

type LPHandler struct {
	logger     *slog.Logger
	deliverer  service.Deliverer
	token      string
	maxTimeout time.Duration
}

func NewLPHandler(logger *slog.Logger, deliverer service.Deliverer, cfg *config.Config) *LPHandler {
	maxTimeout := cfg.Server.PollTimeout
	if maxTimeout <= 0 {
		maxTimeout = defaultPollTimeout
	}
	return &LPHandler{
		logger:     logger,
		deliverer:  deliverer,
		token:      cfg.Server.WSToken,
		maxTimeout: maxTimeout,
	}
}

func (h *LPHandler) Register(r chi.Router) {
	r.With(httpsrv.TokenAuth(h.token)).Get(PollPath, h.Poll)
}

// Poll handles the long-polling request.
// It holds the connection until an event arrives or timeout occurs. Like the
// websocket stream it has no history: only events broadcast while the request
// is waiting are returned.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	timeout, err := h.timeout(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// 1. Temporary Subscription.
	// The subscriber lives only for the duration of this HTTP request.
	sub, err := h.deliverer.Subscribe(r.Context(), registry.ConnectMetadata{
		Transport: "lp",
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrShutDown) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, "failed to subscribe", status)
		return
	}
	defer h.deliverer.Unsubscribe(sub.GetID())
	defer sub.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var frames [][]byte

	// 2. Wait for data or timeout.
	select {
	case <-sub.Done():
		// Client disconnected or server shutting down.
		return

	case <-timer.C:
		w.WriteHeader(http.StatusNoContent)
		return

	case frame := <-sub.Recv():
		frames = append(frames, frame)

		// Drain what is already buffered to batch it into this response.
	drainLoop:
		for len(frames) < maxBatch {
			select {
			case next := <-sub.Recv():
				frames = append(frames, next)
			default:
				break drainLoop
			}
		}
	}

	// 3. Final transmission.
	data, err := lpmarshaller.MarshallEvents(frames)
	if err != nil {
		h.logger.Error("[LP] marshal failed", slog.Any("err", err))
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// timeout reads ?timeout= as a Go duration, capped at the configured maximum.
func (h *LPHandler) timeout(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		return h.maxTimeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errors.New("timeout must be a positive duration such as 25s")
	}
	return min(d, h.maxTimeout), nil
}
